package utils

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/11904212/pcc-demo-api/processor"
)

const profilesQuery = `select collection, nir_band, red_band,
	coalesce(true_color_band, ''), coalesce(classification_band, ''),
	coalesce(clear_values, '{}'), coalesce(indices::text, '{}'), coalesce(asset_media_type, '')
	from collection_profiles order by collection`

// ProfilesSchema creates the table LoadProfilesDB reads.
const ProfilesSchema = `create table if not exists collection_profiles (
	collection text primary key,
	nir_band text not null,
	red_band text not null,
	true_color_band text,
	classification_band text,
	clear_values integer[],
	indices jsonb,
	asset_media_type text
)`

// OpenProfilesDB opens the Postgres database holding collection
// profiles.
func OpenProfilesDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening profiles database")
	}
	db.SetMaxOpenConns(2)
	return db, nil
}

// LoadProfilesDB reads every row of collection_profiles.
func LoadProfilesDB(ctx context.Context, db *sql.DB) ([]*processor.CollectionProfile, error) {
	rows, err := db.QueryContext(ctx, profilesQuery)
	if err != nil {
		return nil, errors.Wrap(err, "querying collection profiles")
	}
	defer rows.Close()

	var out []*processor.CollectionProfile
	for rows.Next() {
		p := &processor.CollectionProfile{}
		var clearValues []int64
		var indices string
		if err := rows.Scan(&p.Collection, &p.NIRBand, &p.RedBand, &p.TrueColorBand, &p.ClassificationBand,
			pq.Array(&clearValues), &indices, &p.AssetMediaType); err != nil {
			return nil, errors.Wrap(err, "scanning collection profile")
		}
		for _, v := range clearValues {
			p.ClearValues = append(p.ClearValues, int(v))
		}
		if err := json.Unmarshal([]byte(indices), &p.Indices); err != nil {
			return nil, errors.Wrapf(processor.ErrValidation, "collection %s indices: %v", p.Collection, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "reading collection profiles")
	}
	return out, nil
}

// SaveProfileDB inserts or replaces one profile.
func SaveProfileDB(ctx context.Context, db *sql.DB, p *processor.CollectionProfile) error {
	indices, err := json.Marshal(p.Indices)
	if err != nil {
		return errors.Wrapf(err, "encoding indices of %s", p.Collection)
	}
	clearValues := make([]int64, len(p.ClearValues))
	for i, v := range p.ClearValues {
		clearValues[i] = int64(v)
	}
	_, err = db.ExecContext(ctx, `insert into collection_profiles
		(collection, nir_band, red_band, true_color_band, classification_band, clear_values, indices, asset_media_type)
		values ($1, $2, $3, nullif($4, ''), nullif($5, ''), $6, $7::jsonb, nullif($8, ''))
		on conflict (collection) do update set
			nir_band = excluded.nir_band, red_band = excluded.red_band,
			true_color_band = excluded.true_color_band, classification_band = excluded.classification_band,
			clear_values = excluded.clear_values, indices = excluded.indices,
			asset_media_type = excluded.asset_media_type`,
		p.Collection, p.NIRBand, p.RedBand, p.TrueColorBand, p.ClassificationBand,
		pq.Array(clearValues), string(indices), p.AssetMediaType)
	return errors.Wrapf(err, "saving profile %s", p.Collection)
}
