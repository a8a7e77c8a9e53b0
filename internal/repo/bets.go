package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/radieske/bet-settlement-platform/internal/grading"
)

// GetBet carrega uma aposta com as legs ordenadas
func (p *Postgres) GetBet(ctx context.Context, id string) (*Bet, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, selection, line, odds, stake_cents,
		       potential_payout_cents, status, game_id, settled_at, settle_reason,
		       player_id, stat, period,
		       teaser_points, teaser_push_rule, if_condition, round_robin_size
		FROM bets WHERE id=$1`, id)

	var b Bet
	var line sql.NullFloat64
	var gameID, pushRule, ifCond, reason, playerID, stat sql.NullString
	var settledAt sql.NullTime
	var teaserPoints sql.NullFloat64
	var rrSize, period sql.NullInt64

	err := row.Scan(&b.ID, &b.UserID, &b.Type, &b.Selection, &line, &b.Odds,
		&b.StakeCents, &b.PotentialPayoutCents, &b.Status, &gameID, &settledAt,
		&reason, &playerID, &stat, &period, &teaserPoints, &pushRule, &ifCond, &rrSize)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if line.Valid {
		b.Line = &line.Float64
	}
	if gameID.Valid {
		b.GameID = &gameID.String
	}
	if settledAt.Valid {
		b.SettledAt = &settledAt.Time
	}
	if reason.Valid {
		b.SettleReason = reason.String
	}
	if playerID.Valid {
		b.PlayerID = playerID.String
	}
	if stat.Valid {
		b.Stat = stat.String
	}
	if period.Valid {
		n := int(period.Int64)
		b.Period = &n
	}
	if teaserPoints.Valid {
		b.TeaserPoints = &teaserPoints.Float64
	}
	if pushRule.Valid {
		r := grading.TeaserPushRule(pushRule.String)
		b.TeaserPushRule = &r
	}
	if ifCond.Valid {
		c := grading.IfCondition(ifCond.String)
		b.IfCondition = &c
	}
	if rrSize.Valid {
		n := int(rrSize.Int64)
		b.RoundRobinSize = &n
	}

	if b.Type.IsComposite() {
		if b.Legs, err = p.betLegs(ctx, b.ID); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

func (p *Postgres) betLegs(ctx context.Context, betID string) ([]Leg, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT idx, type, selection, line, odds, game_id, player_id, stat, period
		FROM bet_legs WHERE bet_id=$1 ORDER BY idx`, betID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var legs []Leg
	for rows.Next() {
		var l Leg
		var line sql.NullFloat64
		var playerID, stat sql.NullString
		var period sql.NullInt64
		if err := rows.Scan(&l.Idx, &l.Type, &l.Selection, &line, &l.Odds,
			&l.GameID, &playerID, &stat, &period); err != nil {
			return nil, err
		}
		if line.Valid {
			l.Line = &line.Float64
		}
		if playerID.Valid {
			l.PlayerID = playerID.String
		}
		if stat.Valid {
			l.Stat = stat.String
		}
		if period.Valid {
			n := int(period.Int64)
			l.Period = &n
		}
		legs = append(legs, l)
	}
	return legs, rows.Err()
}

// PendingBetIDsByGame lista apostas simples pendentes atadas a um jogo
func (p *Postgres) PendingBetIDsByGame(ctx context.Context, gameID string) ([]string, error) {
	return p.queryIDs(ctx, `SELECT id FROM bets WHERE game_id=$1 AND status='PENDING'`, gameID)
}

// FinishedGameIDsWithPendingBets lista jogos encerrados que ainda têm
// apostas simples pendentes
func (p *Postgres) FinishedGameIDsWithPendingBets(ctx context.Context) ([]string, error) {
	return p.queryIDs(ctx, `
		SELECT DISTINCT g.id
		FROM games g
		JOIN bets b ON b.game_id = g.id
		WHERE g.status='FINISHED' AND b.status='PENDING'`)
}

// PendingCompositeBetIDs lista apostas compostas pendentes (sem game_id direto)
func (p *Postgres) PendingCompositeBetIDs(ctx context.Context) ([]string, error) {
	return p.queryIDs(ctx, `SELECT id FROM bets WHERE status='PENDING' AND game_id IS NULL ORDER BY id`)
}

func (p *Postgres) queryIDs(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SettlePendingBet grava o desfecho e credita o payout na mesma transação.
// O guard status='PENDING' garante exatamente uma liquidação: o worker que
// perder a corrida recebe false e sai como no-op.
func (p *Postgres) SettlePendingBet(ctx context.Context, betID, userID string, status BetStatus, payoutCents int64, reason string) (bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE bets
		SET status=$2, settle_reason=$3, settled_at=NOW()
		WHERE id=$1 AND status='PENDING'`,
		betID, status, reason,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil // já liquidada por outro worker
	}

	// A aposta já foi debitada na colocação; só o retorno entra aqui.
	// Derrota não mexe em saldo.
	if payoutCents > 0 {
		var accountID string
		if err = tx.QueryRowContext(ctx,
			`SELECT id FROM accounts WHERE user_id=$1 FOR UPDATE`, userID).Scan(&accountID); err != nil {
			return false, err
		}

		if _, err = tx.ExecContext(ctx, `
			UPDATE accounts SET balance_cents = balance_cents + $1, version = version + 1
			WHERE id=$2`, payoutCents, accountID); err != nil {
			return false, err
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO account_ledger(id, account_id, bet_id, operation_type, amount_cents, description)
			VALUES($1,$2,$3,'SETTLEMENT',$4,$5)`,
			uuid.NewString(), accountID, betID, payoutCents, "settle:"+string(status)); err != nil {
			return false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
