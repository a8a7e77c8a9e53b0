package repo

import (
	"database/sql"
	"errors"
)

// Postgres implementa a persistência de jogos, apostas e contas
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var ErrNotFound = errors.New("not found")
