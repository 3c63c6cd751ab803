package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// settingsID is the fixed primary key of the settings singleton.
const settingsID = 1

type settingsRepo struct {
	store *Store
}

func (r *settingsRepo) Get(ctx context.Context) (*Settings, error) {
	var st Settings
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		q := builder.Select("theme", "model", "practice_language", "ui_language", "score").
			From(builder.Table(tableSettings)).
			Where(entsql.EQ("id", settingsID))
		err := queryRow(ctx, tx, q).Scan(&st.Theme, &st.Model, &st.PracticeLanguage, &st.UILanguage, &st.Score)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("settings row missing: %w", ErrNotFound)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &st, nil
}

func (r *settingsRepo) Update(ctx context.Context, patch SettingsPatch, scoreDelta int) error {
	if scoreDelta < 0 {
		return fmt.Errorf("update settings: score delta %d is negative", scoreDelta)
	}
	if patch.IsEmpty() && scoreDelta == 0 {
		return nil
	}

	u := builder.Update(tableSettings).Where(entsql.EQ("id", settingsID))
	if patch.Theme != "" {
		u.Set("theme", patch.Theme)
	}
	if patch.Model != "" {
		u.Set("model", patch.Model)
	}
	if patch.PracticeLanguage != "" {
		u.Set("practice_language", patch.PracticeLanguage)
	}
	if patch.UILanguage != "" {
		u.Set("ui_language", patch.UILanguage)
	}
	if scoreDelta > 0 {
		u.Add("score", scoreDelta)
	}

	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		_, err := execQuery(ctx, tx, u)
		return err
	})
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

func addScore(ctx context.Context, tx *sql.Tx, delta int) error {
	_, err := execQuery(ctx, tx, builder.Update(tableSettings).
		Add("score", delta).
		Where(entsql.EQ("id", settingsID)))
	if err != nil {
		return fmt.Errorf("add score: %w", err)
	}
	return nil
}

// ensureDefaults creates the settings row when it does not exist yet.
func (r *settingsRepo) ensureDefaults(ctx context.Context) error {
	ins := builder.Insert(tableSettings).
		Columns("id", "theme", "model", "practice_language", "ui_language", "score").
		Values(settingsID, DefaultTheme, DefaultModel, DefaultPracticeLanguage, DefaultUILanguage, 0).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing())
	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		_, err := execQuery(ctx, tx, ins)
		return err
	})
}
