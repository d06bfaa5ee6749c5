package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/presensia/facegate/pkg/face"
	"github.com/presensia/facegate/pkg/logging"
)

// StoreKey is the single KV key holding all registered identities.
const StoreKey = "registered_faces"

// ErrNotFound is returned when no identity with the given name exists.
var ErrNotFound = errors.New("identity not found")

// Identity is one registered person: a unique name and the embeddings
// captured for them. Persisted identities always have at least one
// embedding; finalize-time code enforces that, not the store.
type Identity struct {
	Name         string
	Embeddings   []face.Embedding
	RegisteredAt time.Time
}

// AverageEmbedding returns the element-wise mean of the identity's
// embeddings. It is derived on demand, never persisted.
func (id Identity) AverageEmbedding() face.Embedding {
	return face.AverageEmbedding(id.Embeddings)
}

// identityRecord is the on-disk shape. Older installs stored a single
// vector under "embedding"; current records use the "embeddings" list.
type identityRecord struct {
	Name         string      `json:"name"`
	Embeddings   [][]float32 `json:"embeddings,omitempty"`
	Embedding    []float32   `json:"embedding,omitempty"`
	RegisteredAt string      `json:"registeredAt"`
}

// decodeIdentity parses one persisted record, adapting the legacy
// single-embedding shape into a one-element list.
func decodeIdentity(raw string) (Identity, error) {
	var record identityRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return Identity{}, fmt.Errorf("malformed identity record: %w", err)
	}
	if record.Name == "" {
		return Identity{}, errors.New("identity record has no name")
	}

	embeddings := make([]face.Embedding, 0, len(record.Embeddings))
	for _, v := range record.Embeddings {
		embeddings = append(embeddings, face.Embedding(v))
	}
	if len(embeddings) == 0 && record.Embedding != nil {
		embeddings = append(embeddings, face.Embedding(record.Embedding))
	}

	// Tolerate missing or unparseable timestamps rather than dropping
	// the record.
	registeredAt, _ := time.Parse(time.RFC3339, record.RegisteredAt)

	return Identity{
		Name:         record.Name,
		Embeddings:   embeddings,
		RegisteredAt: registeredAt,
	}, nil
}

func encodeIdentity(id Identity) (string, error) {
	record := identityRecord{
		Name:         id.Name,
		Embeddings:   make([][]float32, 0, len(id.Embeddings)),
		RegisteredAt: id.RegisteredAt.Format(time.RFC3339),
	}
	for _, emb := range id.Embeddings {
		record.Embeddings = append(record.Embeddings, []float32(emb))
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode identity %q: %w", id.Name, err)
	}
	return string(raw), nil
}

// Store manages registered identities on top of a KV backend.
type Store struct {
	kv KV
	mu sync.Mutex
}

// NewStore creates a Store over the given KV backend.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// List returns all registered identities. Records that fail to decode are
// skipped so one corrupt entry cannot break the whole listing.
func (s *Store) List() ([]Identity, error) {
	raw, err := s.kv.GetStringList(StoreKey)
	if err != nil {
		return nil, err
	}

	identities := make([]Identity, 0, len(raw))
	for _, entry := range raw {
		id, err := decodeIdentity(entry)
		if err != nil {
			logging.Component("store").WithError(err).Debug("skipping corrupt identity record")
			continue
		}
		identities = append(identities, id)
	}
	return identities, nil
}

// Get returns the identity with the given name, or ErrNotFound.
func (s *Store) Get(name string) (*Identity, error) {
	identities, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := range identities {
		if identities[i].Name == name {
			return &identities[i], nil
		}
	}
	return nil, ErrNotFound
}

// Save registers name with the given embeddings, wholesale replacing any
// existing identity of the same name.
func (s *Store) Save(name string, embeddings []face.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.GetStringList(StoreKey)
	if err != nil {
		return err
	}

	kept := removeByName(raw, name)
	encoded, err := encodeIdentity(Identity{
		Name:         name,
		Embeddings:   embeddings,
		RegisteredAt: time.Now(),
	})
	if err != nil {
		return err
	}

	logging.Component("store").Infof("saving identity %q with %d embedding(s)", name, len(embeddings))
	return s.kv.SetStringList(StoreKey, append(kept, encoded))
}

// AddEmbedding appends one embedding to an existing identity, preserving
// its registration time, or creates a new identity when none exists.
func (s *Store) AddEmbedding(name string, embedding face.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.GetStringList(StoreKey)
	if err != nil {
		return err
	}

	updated := false
	for i, entry := range raw {
		id, err := decodeIdentity(entry)
		if err != nil || id.Name != name {
			continue
		}
		id.Embeddings = append(id.Embeddings, embedding)
		encoded, err := encodeIdentity(id)
		if err != nil {
			return err
		}
		raw[i] = encoded
		updated = true
		break
	}

	if !updated {
		encoded, err := encodeIdentity(Identity{
			Name:         name,
			Embeddings:   []face.Embedding{embedding},
			RegisteredAt: time.Now(),
		})
		if err != nil {
			return err
		}
		raw = append(raw, encoded)
	}

	return s.kv.SetStringList(StoreKey, raw)
}

// Delete removes the identity with the given name.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.GetStringList(StoreKey)
	if err != nil {
		return err
	}

	kept := removeByName(raw, name)
	if len(kept) == len(raw) {
		return ErrNotFound
	}
	return s.kv.SetStringList(StoreKey, kept)
}

// ClearAll removes every registered identity.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Remove(StoreKey)
}

// Count returns the number of persisted records, decodable or not.
func (s *Store) Count() (int, error) {
	raw, err := s.kv.GetStringList(StoreKey)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

// Search returns identities whose name contains the query, compared
// case-insensitively and ignoring diacritics.
func (s *Store) Search(query string) ([]Identity, error) {
	identities, err := s.List()
	if err != nil {
		return nil, err
	}

	needle := NormalizeName(query)
	matched := make([]Identity, 0, len(identities))
	for _, id := range identities {
		if strings.Contains(NormalizeName(id.Name), needle) {
			matched = append(matched, id)
		}
	}
	return matched, nil
}

// removeByName drops raw records whose decoded name matches. Undecodable
// records are kept untouched.
func removeByName(raw []string, name string) []string {
	kept := make([]string, 0, len(raw))
	for _, entry := range raw {
		if id, err := decodeIdentity(entry); err == nil && id.Name == name {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}
