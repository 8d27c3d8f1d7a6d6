// Package importer pulls attachments out of a connected Gmail account,
// classifies them and files them into document storage.
//
// An import run has three passes over an ordered list of leaf attachments:
//
//  1. discovery: list matching messages (falling back to broader queries when
//     the requested one finds nothing) and flatten each message's part tree;
//  2. analysis: download and classify attachments with bounded parallelism;
//  3. store: in discovery order, skip duplicates, upload the bytes and insert
//     the metadata row.
//
// Failures are recorded per message or per attachment in the Report. Only a
// missing credential or a failing primary listing aborts a run.
package importer
