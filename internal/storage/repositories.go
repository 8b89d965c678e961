// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
repositories.go - Embedded Entity Store

BadgerDB-backed implementations of the orchestrator's repository
interfaces. Entities live under zero-padded decimal ID keys so prefix
iteration yields ascending ID order, which the cursor-based backlog
sweeps rely on. A natural-key index per entity keeps merges idempotent
across runs.
*/

package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/models/blizzard"
)

// Entity key prefixes. ID keys append a zero-padded decimal ID, natural
// keys append the entity's upstream identity.
const (
	prefixSeasonID     = "entity.season.id."
	prefixSeasonKey    = "entity.season.key."
	prefixCharacterID  = "entity.character.id."
	prefixCharacterKey = "entity.character.key."
	prefixAccountID    = "entity.account.id."
	prefixAccountKey   = "entity.account.key."
	prefixClanID       = "entity.clan.id."
	prefixClanKey      = "entity.clan.key."
	prefixMembership   = "entity.clanmember."
	prefixTeam         = "entity.team."
)

// DefaultClanMemberInactiveAfter marks a clan membership stale once it
// has not been confirmed for this long.
const DefaultClanMemberInactiveAfter = 24 * time.Hour

// teamRow is the stored snapshot of one ladder team.
type teamRow struct {
	Season       int               `json:"season"`
	Region       models.Region     `json:"region"`
	Queue        models.QueueType  `json:"queue"`
	Tier         models.LeagueTier `json:"tier"`
	DivisionID   int64             `json:"divisionId"`
	LegacyID     string            `json:"legacyId"`
	Rating       int               `json:"rating"`
	Wins         int               `json:"wins"`
	Losses       int               `json:"losses"`
	Ties         int               `json:"ties"`
	Points       int               `json:"points"`
	LastPlayed   int64             `json:"lastPlayed"`
	CharacterIDs []int64           `json:"characterIds"`
	Fresh        bool              `json:"fresh"`
	Updated      time.Time         `json:"updated"`
}

// EntityStore implements the orchestrator's repository interfaces over
// the same BadgerDB instance as the variable store.
type EntityStore struct {
	db            *badger.DB
	inactiveAfter time.Duration

	seqMu sync.Mutex
	seqs  map[string]*badger.Sequence

	now func() time.Time
}

// NewEntityStore builds the entity repositories on top of an open
// variable store. inactiveAfter bounds how long a clan membership stays
// trusted without confirmation; zero selects the default.
func NewEntityStore(vars *VariableStore, inactiveAfter time.Duration) *EntityStore {
	if inactiveAfter <= 0 {
		inactiveAfter = DefaultClanMemberInactiveAfter
	}
	return &EntityStore{
		db:            vars.db,
		inactiveAfter: inactiveAfter,
		seqs:          make(map[string]*badger.Sequence),
		now:           time.Now,
	}
}

// Close releases the ID sequences. The underlying database belongs to
// the variable store and is closed there.
func (s *EntityStore) Close() error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	for _, seq := range s.seqs {
		if err := seq.Release(); err != nil {
			return fmt.Errorf("release sequence: %w", err)
		}
	}
	s.seqs = make(map[string]*badger.Sequence)
	return nil
}

func (s *EntityStore) nextID(name string) (int64, error) {
	s.seqMu.Lock()
	seq, ok := s.seqs[name]
	if !ok {
		var err error
		seq, err = s.db.GetSequence([]byte("seq."+name), 64)
		if err != nil {
			s.seqMu.Unlock()
			return 0, fmt.Errorf("open sequence %s: %w", name, err)
		}
		s.seqs[name] = seq
	}
	s.seqMu.Unlock()

	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next id %s: %w", name, err)
	}
	// Badger sequences start at 0; entity IDs start at 1.
	return int64(n) + 1, nil
}

func idKey(prefix string, id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefix, id))
}

func getJSON(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// lookupID resolves a natural key to an entity ID, or 0 when unknown.
func lookupID(txn *badger.Txn, key []byte) (int64, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var id int64
	err = item.Value(func(val []byte) error {
		id, err = strconv.ParseInt(string(val), 10, 64)
		return err
	})
	return id, err
}

func setID(txn *badger.Txn, key []byte, id int64) error {
	return txn.Set(key, []byte(strconv.FormatInt(id, 10)))
}

// Seasons returns the season repository view. The season and clan
// repository contracts both name their upsert Merge, so each gets a
// typed view with the method under its expected name.
func (s *EntityStore) Seasons() SeasonStore { return SeasonStore{s} }

// Clans returns the clan repository view.
func (s *EntityStore) Clans() ClanStore { return ClanStore{s} }

// SeasonStore adapts the entity store to the season repository contract.
type SeasonStore struct{ *EntityStore }

// Merge inserts or updates a season and returns the stored row.
func (s SeasonStore) Merge(ctx context.Context, season models.Season) (models.Season, error) {
	return s.MergeSeason(ctx, season)
}

// ClanStore adapts the entity store to the clan repository contract.
type ClanStore struct{ *EntityStore }

// Merge inserts or updates a clan and returns the stored row.
func (s ClanStore) Merge(ctx context.Context, clan models.Clan) (models.Clan, error) {
	return s.MergeClan(ctx, clan)
}

// MergeSeason inserts or updates a season by (region, battlenet ID).
func (s *EntityStore) MergeSeason(ctx context.Context, season models.Season) (models.Season, error) {
	naturalKey := []byte(fmt.Sprintf("%s%s.%d", prefixSeasonKey, season.Region, season.BattlenetID))
	err := s.db.Update(func(txn *badger.Txn) error {
		id, err := lookupID(txn, naturalKey)
		if err != nil {
			return err
		}
		if id == 0 {
			if id, err = s.nextID("season"); err != nil {
				return err
			}
			if err := setID(txn, naturalKey, id); err != nil {
				return err
			}
		}
		season.ID = id
		return setJSON(txn, idKey(prefixSeasonID, id), season)
	})
	if err != nil {
		return models.Season{}, fmt.Errorf("merge season %s/%d: %w", season.Region, season.BattlenetID, err)
	}
	return season, nil
}

// FindByRegion returns the region's seasons in ascending battlenet ID order.
func (s *EntityStore) FindByRegion(ctx context.Context, region models.Region) ([]models.Season, error) {
	var out []models.Season
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixSeasonID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var season models.Season
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &season)
			})
			if err != nil {
				return err
			}
			if season.Region == region {
				out = append(out, season)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find seasons %s: %w", region, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BattlenetID < out[j].BattlenetID })
	return out, nil
}

// MergeLadder upserts one division's teams and their member characters.
func (s *EntityStore) MergeLadder(
	ctx context.Context,
	season models.Season,
	queue models.QueueType,
	tier models.LeagueTier,
	division blizzard.Division,
	ladder *blizzard.Ladder,
	fresh bool,
) error {
	now := s.now()
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, team := range ladder.Teams {
			row := teamRow{
				Season:     season.BattlenetID,
				Region:     season.Region,
				Queue:      queue,
				Tier:       tier,
				DivisionID: int64(division.ID),
				LegacyID:   team.ID,
				Rating:     team.Rating,
				Wins:       team.Wins,
				Losses:     team.Losses,
				Ties:       team.Ties,
				Points:     team.Points,
				LastPlayed: team.LastPlayed,
				Fresh:      fresh,
				Updated:    now,
			}
			for _, member := range team.Members {
				if member.LegacyLink.ID == 0 {
					continue
				}
				id, err := s.mergeCharacter(txn, season.Region, member, now)
				if err != nil {
					return err
				}
				row.CharacterIDs = append(row.CharacterIDs, id)
			}
			key := []byte(fmt.Sprintf("%s%s.%d.%s.%s", prefixTeam, season.Region, season.BattlenetID, queue, team.ID))
			if err := setJSON(txn, key, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("merge ladder %d: %w", division.LadderID, err)
	}
	return nil
}

// mergeCharacter upserts a character seen on a ladder team, preserving
// its stored account and clan links.
func (s *EntityStore) mergeCharacter(txn *badger.Txn, region models.Region, member blizzard.TeamMember, now time.Time) (int64, error) {
	link := member.LegacyLink
	naturalKey := []byte(fmt.Sprintf("%s%s.%d.%d", prefixCharacterKey, region, link.Realm, link.ID))
	id, err := lookupID(txn, naturalKey)
	if err != nil {
		return 0, err
	}

	var ch models.Character
	if id != 0 {
		if _, err := getJSON(txn, idKey(prefixCharacterID, id), &ch); err != nil {
			return 0, err
		}
	} else {
		if id, err = s.nextID("character"); err != nil {
			return 0, err
		}
		if err := setID(txn, naturalKey, id); err != nil {
			return 0, err
		}
	}
	ch.ID = id
	ch.Region = region
	ch.RealmID = link.Realm
	ch.BattlenetID = link.ID
	if link.Name != "" {
		ch.Name = link.Name
	}
	ch.Updated = now
	return id, setJSON(txn, idKey(prefixCharacterID, id), ch)
}

// Count returns the total number of known characters.
func (s *EntityStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(prefixCharacterID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count characters: %w", err)
	}
	return n, nil
}

// ListAfter returns up to limit characters with ID > lastID, ascending.
func (s *EntityStore) ListAfter(ctx context.Context, lastID int64, limit int) ([]models.Character, error) {
	var out []models.Character
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixCharacterID)
		for it.Seek(idKey(prefixCharacterID, lastID+1)); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var ch models.Character
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ch)
			})
			if err != nil {
				return err
			}
			out = append(out, ch)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list characters after %d: %w", lastID, err)
	}
	return out, nil
}

// Update persists refreshed character fields.
func (s *EntityStore) Update(ctx context.Context, character models.Character) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		naturalKey := []byte(fmt.Sprintf("%s%s.%d.%d", prefixCharacterKey, character.Region, character.RealmID, character.BattlenetID))
		if err := setID(txn, naturalKey, character.ID); err != nil {
			return err
		}
		return setJSON(txn, idKey(prefixCharacterID, character.ID), character)
	})
	if err != nil {
		return fmt.Errorf("update character %d: %w", character.ID, err)
	}
	return nil
}

// MergeClan inserts or updates a clan by (tag, region).
func (s *EntityStore) MergeClan(ctx context.Context, clan models.Clan) (models.Clan, error) {
	naturalKey := []byte(fmt.Sprintf("%s%s.%s", prefixClanKey, clan.Region, clan.Tag))
	err := s.db.Update(func(txn *badger.Txn) error {
		id, err := lookupID(txn, naturalKey)
		if err != nil {
			return err
		}
		if id == 0 {
			if id, err = s.nextID("clan"); err != nil {
				return err
			}
			if err := setID(txn, naturalKey, id); err != nil {
				return err
			}
		}
		clan.ID = id
		return setJSON(txn, idKey(prefixClanID, id), clan)
	})
	if err != nil {
		return models.Clan{}, fmt.Errorf("merge clan %s/%s: %w", clan.Region, clan.Tag, err)
	}
	return clan, nil
}

// CountInactiveMembers returns how many clan memberships are stale.
func (s *EntityStore) CountInactiveMembers(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.inactiveAfter)
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixMembership)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m models.ClanMember
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return err
			}
			if m.Updated.Before(cutoff) {
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count inactive members: %w", err)
	}
	return n, nil
}

// InactiveMembers returns up to limit characters with stale membership
// and ID > lastID, ascending.
func (s *EntityStore) InactiveMembers(ctx context.Context, lastID int64, limit int) ([]models.Character, error) {
	cutoff := s.now().Add(-s.inactiveAfter)
	var out []models.Character
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixMembership)
		for it.Seek(idKey(prefixMembership, lastID+1)); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var m models.ClanMember
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return err
			}
			if !m.Updated.Before(cutoff) {
				continue
			}
			var ch models.Character
			found, err := getJSON(txn, idKey(prefixCharacterID, m.CharacterID), &ch)
			if err != nil {
				return err
			}
			if found {
				out = append(out, ch)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list inactive members after %d: %w", lastID, err)
	}
	return out, nil
}

// SaveMembership records that a character currently belongs to a clan.
func (s *EntityStore) SaveMembership(ctx context.Context, characterID, clanID int64) error {
	now := s.now()
	err := s.db.Update(func(txn *badger.Txn) error {
		m := models.ClanMember{CharacterID: characterID, ClanID: clanID, Updated: now}
		if err := setJSON(txn, idKey(prefixMembership, characterID), m); err != nil {
			return err
		}
		var ch models.Character
		found, err := getJSON(txn, idKey(prefixCharacterID, characterID), &ch)
		if err != nil || !found {
			return err
		}
		ch.ClanID = &clanID
		return setJSON(txn, idKey(prefixCharacterID, characterID), ch)
	})
	if err != nil {
		return fmt.Errorf("save membership %d->%d: %w", characterID, clanID, err)
	}
	return nil
}

// RemoveMembership drops a character's clan membership.
func (s *EntityStore) RemoveMembership(ctx context.Context, characterID int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(idKey(prefixMembership, characterID)); err != nil {
			return err
		}
		var ch models.Character
		found, err := getJSON(txn, idKey(prefixCharacterID, characterID), &ch)
		if err != nil || !found {
			return err
		}
		ch.ClanID = nil
		return setJSON(txn, idKey(prefixCharacterID, characterID), ch)
	})
	if err != nil {
		return fmt.Errorf("remove membership %d: %w", characterID, err)
	}
	return nil
}

// RemoveOrphanMemberships drops memberships whose character is gone.
func (s *EntityStore) RemoveOrphanMemberships(ctx context.Context) (int64, error) {
	var removed int64
	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		prefix := []byte(prefixMembership)
		var orphans []int64
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m models.ClanMember
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				it.Close()
				return err
			}
			if _, err := txn.Get(idKey(prefixCharacterID, m.CharacterID)); err == badger.ErrKeyNotFound {
				orphans = append(orphans, m.CharacterID)
			} else if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()
		for _, id := range orphans {
			if err := txn.Delete(idKey(prefixMembership, id)); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("remove orphan memberships: %w", err)
	}
	return removed, nil
}

// RemoveEmpty deletes accounts with no remaining characters.
func (s *EntityStore) RemoveEmpty(ctx context.Context) (int64, error) {
	var removed int64
	err := s.db.Update(func(txn *badger.Txn) error {
		referenced := make(map[int64]struct{})
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		prefix := []byte(prefixCharacterID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var ch models.Character
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ch)
			})
			if err != nil {
				it.Close()
				return err
			}
			if ch.AccountID != 0 {
				referenced[ch.AccountID] = struct{}{}
			}
		}
		it.Close()

		it = txn.NewIterator(badger.DefaultIteratorOptions)
		prefix = []byte(prefixAccountID)
		var empty []models.Account
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var acc models.Account
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &acc)
			})
			if err != nil {
				it.Close()
				return err
			}
			if _, ok := referenced[acc.ID]; !ok {
				empty = append(empty, acc)
			}
		}
		it.Close()

		for _, acc := range empty {
			if err := txn.Delete(idKey(prefixAccountID, acc.ID)); err != nil {
				return err
			}
			if err := txn.Delete([]byte(prefixAccountKey + acc.BattleTag)); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("remove empty accounts: %w", err)
	}
	return removed, nil
}

// Anonymize strips personal data from accounts and characters whose
// last update falls in [from, to).
func (s *EntityStore) Anonymize(ctx context.Context, from, to time.Time) (int64, error) {
	var touched int64
	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		prefix := []byte(prefixAccountID)
		var stale []models.Account
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var acc models.Account
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &acc)
			})
			if err != nil {
				it.Close()
				return err
			}
			if !acc.Updated.Before(from) && acc.Updated.Before(to) {
				stale = append(stale, acc)
			}
		}
		it.Close()

		for _, acc := range stale {
			if err := txn.Delete([]byte(prefixAccountKey + acc.BattleTag)); err != nil {
				return err
			}
			acc.BattleTag = fmt.Sprintf("anonymous#%d", acc.ID)
			if err := setID(txn, []byte(prefixAccountKey+acc.BattleTag), acc.ID); err != nil {
				return err
			}
			if err := setJSON(txn, idKey(prefixAccountID, acc.ID), acc); err != nil {
				return err
			}
			touched++
		}

		it = txn.NewIterator(badger.DefaultIteratorOptions)
		prefix = []byte(prefixCharacterID)
		var chars []models.Character
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var ch models.Character
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ch)
			})
			if err != nil {
				it.Close()
				return err
			}
			if !ch.Updated.Before(from) && ch.Updated.Before(to) {
				chars = append(chars, ch)
			}
		}
		it.Close()

		for _, ch := range chars {
			ch.Name = fmt.Sprintf("anonymous#%d", ch.ID)
			if err := setJSON(txn, idKey(prefixCharacterID, ch.ID), ch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("anonymize accounts: %w", err)
	}
	return touched, nil
}

// MergeAccount inserts or updates an account by battle tag.
func (s *EntityStore) MergeAccount(ctx context.Context, account models.Account) (models.Account, error) {
	naturalKey := []byte(prefixAccountKey + account.BattleTag)
	err := s.db.Update(func(txn *badger.Txn) error {
		id, err := lookupID(txn, naturalKey)
		if err != nil {
			return err
		}
		if id == 0 {
			if id, err = s.nextID("account"); err != nil {
				return err
			}
			if err := setID(txn, naturalKey, id); err != nil {
				return err
			}
		}
		account.ID = id
		return setJSON(txn, idKey(prefixAccountID, id), account)
	})
	if err != nil {
		return models.Account{}, fmt.Errorf("merge account %s: %w", account.BattleTag, err)
	}
	return account, nil
}
