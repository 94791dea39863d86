// Package storage provides persistent data storage for the kwak server:
// registered users and the chat message log.
//
// The primary implementation uses SQLite for reliability and simplicity.
//
// Usage:
//
//	store, err := storage.NewSQLiteStore("./kwak.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	msg, err := store.AppendMessage(user.ID, user.Username, "hello")
//
// The Store interface allows for alternative backends such as MySQL while
// maintaining API compatibility. Message ids and timestamps are assigned
// here, never by callers, so commit order is the single source of truth
// for message ordering.
package storage
