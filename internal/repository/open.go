package repository

import (
	"io"
	"log"
)

// Store is a KeyValueStore that owns its connection
type Store interface {
	KeyValueStore
	io.Closer
}

type postgresCloser struct{ *PostgresKV }

func (p postgresCloser) Close() error {
	p.PostgresKV.Close()
	return nil
}

// Open selects the Postgres backend when databaseURL is set and falls back
// to the SQLite file at sqlitePath otherwise
func Open(databaseURL, sqlitePath string) (Store, error) {
	if databaseURL != "" {
		kv, err := NewPostgresKV(databaseURL)
		if err != nil {
			return nil, err
		}
		log.Println("Preferences: using PostgreSQL store")
		return postgresCloser{kv}, nil
	}

	kv, err := NewSQLiteKV(sqlitePath)
	if err != nil {
		return nil, err
	}
	log.Printf("Preferences: using SQLite store at %s", sqlitePath)
	return kv, nil
}
