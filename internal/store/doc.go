// Package store persists the tool-call journal using SQLite.
//
// # Overview
//
// Every tools/call handled by the MCP dispatcher can be recorded as a
// ToolCall row: which tool ran, with what arguments, how it ended and how
// long it took. The journal is write-mostly and is only read back by the
// CLI stats command and by tests.
//
// Sessions are never written here; they live only in memory.
//
// # Usage
//
//	s, err := store.NewSQLiteStore("./data/journal.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	err = s.RecordToolCall(ctx, &store.ToolCall{Tool: "search-notes", Outcome: store.OutcomeOK})
package store
