package store

import (
	"context"
	"fmt"
)

// Draw runs one assignment round. It reads the participant ids, calls
// assign exactly once and writes every target with has_viewed reset, all in
// a single transaction. assign must return a derangement of ids: targets[i]
// is who ids[i] gives to. Nothing is written unless the whole round succeeds.
func (s *Store) Draw(ctx context.Context, assign func(ids []int64) ([]int64, error)) (int, error) {
	s.drawMu.Lock()
	defer s.drawMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	participants, err := listUsers(ctx, tx, Filter{ParticipantsOnly: true})
	if err != nil {
		return 0, fmt.Errorf("list participants: %w", err)
	}
	if len(participants) < 2 {
		return 0, ErrNotEnoughParticipants
	}
	ids := make([]int64, len(participants))
	for i, p := range participants {
		ids[i] = p.Id
	}

	targets, err := assign(ids)
	if err != nil {
		return 0, fmt.Errorf("generate assignments: %w", err)
	}
	if !isDerangementOf(ids, targets) {
		return 0, ErrInvalidAssignment
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE users SET assigned_user_id = ?, has_viewed = 0 WHERE id = ?`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, targets[i], id); err != nil {
			return 0, fmt.Errorf("assign user %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit assignments: %w", err)
	}
	return len(ids), nil
}

func isDerangementOf(ids, targets []int64) bool {
	if len(ids) != len(targets) {
		return false
	}
	remaining := make(map[int64]int, len(ids))
	for _, id := range ids {
		remaining[id]++
	}
	for i, t := range targets {
		if t == ids[i] || remaining[t] == 0 {
			return false
		}
		remaining[t]--
	}
	return true
}
