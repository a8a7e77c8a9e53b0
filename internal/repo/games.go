package repo

import (
	"context"
	"database/sql"
	"time"
)

const gameColumns = `id, external_id, home_team, away_team, status, home_score, away_score, starts_at, finished_at`

func scanGame(row interface{ Scan(...any) error }) (*Game, error) {
	var g Game
	var home, away sql.NullInt64
	var finishedAt sql.NullTime

	err := row.Scan(&g.ID, &g.ExternalID, &g.HomeTeam, &g.AwayTeam, &g.Status,
		&home, &away, &g.StartsAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if home.Valid {
		v := int(home.Int64)
		g.HomeScore = &v
	}
	if away.Valid {
		v := int(away.Int64)
		g.AwayScore = &v
	}
	if finishedAt.Valid {
		g.FinishedAt = &finishedAt.Time
	}
	return &g, nil
}

// GetGame retorna um jogo pelo id interno
func (p *Postgres) GetGame(ctx context.Context, id string) (*Game, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id=$1`, id)
	g, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return g, err
}

// GameByExternalID localiza um jogo pelo identificador do provedor externo
func (p *Postgres) GameByExternalID(ctx context.Context, externalID string) (*Game, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE external_id=$1`, externalID)
	g, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return g, err
}

// MarkFinished grava o placar final e encerra o jogo.
// No-op (retorna false) se o jogo já estiver encerrado com placar: placar
// final é imutável.
func (p *Postgres) MarkFinished(ctx context.Context, gameID string, homeScore, awayScore int) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE games
		SET status='FINISHED', home_score=$2, away_score=$3, finished_at=NOW()
		WHERE id=$1
		  AND NOT (status='FINISHED' AND home_score IS NOT NULL AND away_score IS NOT NULL)`,
		gameID, homeScore, awayScore,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ForceFinish encerra um jogo travado em LIVE que já tem placar registrado
// (fallback contra notificações de encerramento perdidas do provedor)
func (p *Postgres) ForceFinish(ctx context.Context, gameID string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE games
		SET status='FINISHED', finished_at=NOW()
		WHERE id=$1 AND status='LIVE'
		  AND home_score IS NOT NULL AND away_score IS NOT NULL`,
		gameID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// StuckLiveGames lista jogos em LIVE iniciados antes do corte e com placar
func (p *Postgres) StuckLiveGames(ctx context.Context, startedBefore time.Time) ([]*Game, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+gameColumns+`
		FROM games
		WHERE status='LIVE' AND starts_at < $1
		  AND home_score IS NOT NULL AND away_score IS NOT NULL
		ORDER BY starts_at`,
		startedBefore,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
