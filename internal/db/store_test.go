package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/albapepper/eventcentral/internal/store"
)

func TestWhereGames(t *testing.T) {
	where, args := whereGames(store.GameFilter{}, "g")
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = whereGames(store.GameFilter{AgeGroup: "11U", Status: "final"}, "g")
	assert.Equal(t, " WHERE g.age_group = $1 AND g.status = $2", where)
	assert.Equal(t, []interface{}{"11U", "final"}, args)
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"ec_teams", "ec_players", "ec_games", "ec_game_refs", "ec_game_stats", "ec_player_of_game"} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table)
	}
}
