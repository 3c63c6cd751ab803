package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

var scenarioColumns = []string{"id", "setting", "goal", "description", "clipart"}

type scenarioRepo struct {
	store *Store
}

func (r *scenarioRepo) ReplaceAll(ctx context.Context, scenarios []Scenario) error {
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := execQuery(ctx, tx, builder.Delete(tableScenarios)); err != nil {
			return fmt.Errorf("clear scenarios: %w", err)
		}
		_, err := insertScenarios(ctx, tx, scenarios)
		return err
	})
	if err != nil {
		return fmt.Errorf("replace scenarios: %w", err)
	}
	return nil
}

func (r *scenarioRepo) AddIfAbsent(ctx context.Context, scenarios []Scenario) (int, error) {
	var added int
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		n, err := insertScenarios(ctx, tx, scenarios)
		added = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("add scenarios: %w", err)
	}
	return added, nil
}

// insertScenarios inserts one row per scenario, ignoring ids already
// present (including duplicates within the batch).
func insertScenarios(ctx context.Context, tx *sql.Tx, scenarios []Scenario) (int, error) {
	var added int
	for _, sc := range scenarios {
		ins := builder.Insert(tableScenarios).
			Columns(scenarioColumns...).
			Values(sc.ID, sc.Setting, sc.Goal, sc.Description, sc.Clipart).
			OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing())
		res, err := execQuery(ctx, tx, ins)
		if err != nil {
			return added, fmt.Errorf("insert scenario %q: %w", sc.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}
	return added, nil
}

func (r *scenarioRepo) List(ctx context.Context) ([]Scenario, error) {
	var out []Scenario
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		q := builder.Select(scenarioColumns...).
			From(builder.Table(tableScenarios)).
			OrderBy("id")
		rows, err := queryRows(ctx, tx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var sc Scenario
			if err := rows.Scan(&sc.ID, &sc.Setting, &sc.Goal, &sc.Description, &sc.Clipart); err != nil {
				return err
			}
			out = append(out, sc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	return out, nil
}

func (r *scenarioRepo) Get(ctx context.Context, id string) (*Scenario, error) {
	var sc *Scenario
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		sc, err = getScenario(ctx, tx, id)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("scenario %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get scenario %q: %w", id, err)
	}
	return sc, nil
}

func getScenario(ctx context.Context, tx *sql.Tx, id string) (*Scenario, error) {
	var sc Scenario
	q := builder.Select(scenarioColumns...).
		From(builder.Table(tableScenarios)).
		Where(entsql.EQ("id", id))
	err := queryRow(ctx, tx, q).Scan(&sc.ID, &sc.Setting, &sc.Goal, &sc.Description, &sc.Clipart)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (r *scenarioRepo) Delete(ctx context.Context, id string) error {
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		return deleteScenario(ctx, tx, id)
	})
	if err != nil {
		return fmt.Errorf("delete scenario %q: %w", id, err)
	}
	return nil
}

func deleteScenario(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := execQuery(ctx, tx, builder.Delete(tableScenarios).Where(entsql.EQ("id", id)))
	return err
}
