package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config bounds the periodic maintenance loops.
type Config struct {
	BackupInterval  time.Duration
	VerifyInterval  time.Duration
	CleanupInterval time.Duration
	SessionTTL      time.Duration
	RoomTTL         time.Duration
}

func (c *Config) applyDefaults() {
	if c.BackupInterval <= 0 {
		c.BackupInterval = 30 * time.Second
	}
	if c.VerifyInterval <= 0 {
		c.VerifyInterval = 2 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 2 * time.Hour
	}
	if c.RoomTTL <= 0 {
		c.RoomTTL = 6 * time.Hour
	}
}

// SessionStore holds every room's durable state: per-player session records
// plus an opaque game snapshot, guarded by checksums and periodic backups.
type SessionStore struct {
	cfg Config

	mu    sync.Mutex
	rooms map[string]*roomRecord

	// OnRoomEvict is invoked (outside the lock) for each room removed by
	// cleanup, so the owning registry can tear down the live instance.
	OnRoomEvict func(roomID string)

	now func() time.Time
}

func New(cfg Config) *SessionStore {
	cfg.applyDefaults()
	return &SessionStore{
		cfg:   cfg,
		rooms: map[string]*roomRecord{},
		now:   time.Now,
	}
}

// Run starts the backup, integrity and cleanup loops and blocks until ctx
// is cancelled.
func (s *SessionStore) Run(ctx context.Context) {
	backup := time.NewTicker(s.cfg.BackupInterval)
	verify := time.NewTicker(s.cfg.VerifyInterval)
	cleanup := time.NewTicker(s.cfg.CleanupInterval)
	defer backup.Stop()
	defer verify.Stop()
	defer cleanup.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-backup.C:
			s.BackupNow()
		case <-verify.C:
			s.VerifyNow()
		case <-cleanup.C:
			s.CleanupNow()
		}
	}
}

// RoomView is a copy of a room's durable state handed to callers.
type RoomView struct {
	ID        string
	Sessions  map[string]*SessionRecord
	Snapshot  []byte
	CreatedAt time.Time
}

// GetOrCreateRoom lazily creates the room record and verifies its checksum
// on every access, repairing from backup on mismatch.
func (s *SessionStore) GetOrCreateRoom(id string) RoomView {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(id)
	s.verifyRoomLocked(rec)
	return RoomView{
		ID:        rec.id,
		Sessions:  rec.cloneSessions(),
		Snapshot:  append([]byte(nil), rec.snapshot...),
		CreatedAt: rec.createdAt,
	}
}

func (s *SessionStore) getOrCreateLocked(id string) *roomRecord {
	rec := s.rooms[id]
	if rec == nil {
		now := s.now()
		rec = &roomRecord{
			id:         id,
			sessions:   map[string]*SessionRecord{},
			createdAt:  now,
			lastActive: now,
		}
		rec.checksum = roomChecksum(rec.sessions, rec.snapshot)
		s.rooms[id] = rec
		metricRoomsCreated.Add(1)
	}
	return rec
}

// CreateOrRestoreSession upserts the session record for a player. A blank
// token means a brand-new identity; the issued token is returned on the
// record.
func (s *SessionStore) CreateOrRestoreSession(roomID, playerID, name string, isAdmin bool) *SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(roomID)
	now := s.now()

	sess := rec.sessions[playerID]
	if sess == nil {
		sess = &SessionRecord{
			PlayerID:  playerID,
			Name:      name,
			Token:     NewToken(),
			RoomID:    roomID,
			IsAdmin:   isAdmin,
			CreatedAt: now,
		}
		rec.sessions[playerID] = sess
		metricSessionsCreated.Add(1)
	}
	sess.Name = name
	sess.IsAdmin = isAdmin
	sess.Connected = true
	sess.LastActive = now
	sess.ConnectCount++
	sess.pushHistory(ConnEvent{At: now, Connected: true})
	sess.Checksum = sessionChecksum(sess)

	rec.lastActive = now
	rec.checksum = roomChecksum(rec.sessions, rec.snapshot)
	return sess.clone()
}

// SessionByToken resolves an identity token within a room.
func (s *SessionStore) SessionByToken(roomID, token string) (*SessionRecord, bool) {
	if token == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.rooms[roomID]
	if rec == nil {
		return nil, false
	}
	for _, sess := range rec.sessions {
		if sess.Token == token {
			return sess.clone(), true
		}
	}
	return nil, false
}

// SessionByName resolves a session by case-insensitive player name.
func (s *SessionStore) SessionByName(roomID, name string) (*SessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.rooms[roomID]
	if rec == nil {
		return nil, false
	}
	for _, sess := range rec.sessions {
		if strings.EqualFold(sess.Name, name) {
			return sess.clone(), true
		}
	}
	return nil, false
}

// SetConnected flips a session's connection flag and stamps its history.
func (s *SessionStore) SetConnected(roomID, playerID string, connected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.rooms[roomID]
	if rec == nil {
		return false
	}
	sess := rec.sessions[playerID]
	if sess == nil {
		return false
	}
	now := s.now()
	if sess.Connected != connected {
		sess.pushHistory(ConnEvent{At: now, Connected: connected})
	}
	sess.Connected = connected
	sess.LastActive = now
	sess.Checksum = sessionChecksum(sess)
	rec.lastActive = now
	rec.checksum = roomChecksum(rec.sessions, rec.snapshot)
	return true
}

// RemoveSession drops a player's record entirely (leave or kick).
func (s *SessionStore) RemoveSession(roomID, playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.rooms[roomID]
	if rec == nil {
		return false
	}
	if _, ok := rec.sessions[playerID]; !ok {
		return false
	}
	delete(rec.sessions, playerID)
	rec.lastActive = s.now()
	rec.checksum = roomChecksum(rec.sessions, rec.snapshot)
	return true
}

// SaveSnapshot replaces the room's game snapshot and reseals the checksum.
func (s *SessionStore) SaveSnapshot(roomID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(roomID)
	rec.snapshot = append([]byte(nil), data...)
	rec.lastActive = s.now()
	rec.checksum = roomChecksum(rec.sessions, rec.snapshot)
}

// Snapshot returns the last saved game snapshot for the room.
func (s *SessionStore) Snapshot(roomID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.rooms[roomID]
	if rec == nil || len(rec.snapshot) == 0 {
		return nil, false
	}
	return append([]byte(nil), rec.snapshot...), true
}

// DeleteRoom removes a room and all its sessions immediately.
func (s *SessionStore) DeleteRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

// BackupNow snapshots every non-empty room.
func (s *SessionStore) BackupNow() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	now := s.now()
	for _, rec := range s.rooms {
		if len(rec.sessions) == 0 && len(rec.snapshot) == 0 {
			continue
		}
		rec.backup = &RoomBackup{
			TakenAt:  now,
			Sessions: rec.cloneSessions(),
			Snapshot: append([]byte(nil), rec.snapshot...),
			Checksum: rec.checksum,
		}
		count++
	}
	metricBackupsTaken.Add(int64(count))
	return count
}

// VerifyNow recomputes every room's checksum independent of traffic,
// repairing from backup where it no longer matches.
func (s *SessionStore) VerifyNow() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	repaired := 0
	for _, rec := range s.rooms {
		if !s.verifyRoomLocked(rec) {
			repaired++
		}
	}
	return repaired
}

// verifyRoomLocked reports true when the room was already intact.
func (s *SessionStore) verifyRoomLocked(rec *roomRecord) bool {
	sum := roomChecksum(rec.sessions, rec.snapshot)
	if sum == rec.checksum {
		rec.lastVerified = s.now()
		return true
	}

	metricChecksumMismatch.Add(1)
	if rec.backup != nil && roomChecksum(rec.backup.Sessions, rec.backup.Snapshot) == rec.backup.Checksum {
		log.Warn().Str("room_id", rec.id).Msg("room checksum mismatch, restoring from backup")
		restored := make(map[string]*SessionRecord, len(rec.backup.Sessions))
		for id, sess := range rec.backup.Sessions {
			restored[id] = sess.clone()
		}
		rec.sessions = restored
		rec.snapshot = append([]byte(nil), rec.backup.Snapshot...)
		rec.checksum = rec.backup.Checksum
		rec.lastVerified = s.now()
		metricRoomsRestored.Add(1)
		return false
	}

	// No usable backup: reset to empty rather than serve corrupt state.
	log.Error().Str("room_id", rec.id).Msg("room checksum mismatch and backup unusable, resetting room")
	rec.sessions = map[string]*SessionRecord{}
	rec.snapshot = nil
	rec.checksum = roomChecksum(rec.sessions, rec.snapshot)
	rec.lastVerified = s.now()
	rec.backup = nil
	metricRoomsReset.Add(1)
	return false
}

// CleanupNow evicts idle disconnected sessions and empty idle rooms.
// Connected sessions are never evicted.
func (s *SessionStore) CleanupNow() (sessions, rooms int) {
	s.mu.Lock()
	now := s.now()
	var evictedRooms []string
	for roomID, rec := range s.rooms {
		evicted := 0
		for playerID, sess := range rec.sessions {
			if sess.Connected {
				continue
			}
			if now.Sub(sess.LastActive) > s.cfg.SessionTTL {
				delete(rec.sessions, playerID)
				evicted++
			}
		}
		if evicted > 0 {
			sessions += evicted
			rec.checksum = roomChecksum(rec.sessions, rec.snapshot)
		}
		if len(rec.sessions) == 0 && now.Sub(rec.lastActive) > s.cfg.RoomTTL {
			delete(s.rooms, roomID)
			evictedRooms = append(evictedRooms, roomID)
		}
	}
	rooms = len(evictedRooms)
	onEvict := s.OnRoomEvict
	s.mu.Unlock()

	if onEvict != nil {
		for _, id := range evictedRooms {
			onEvict(id)
		}
	}
	if sessions > 0 || rooms > 0 {
		metricSessionsEvicted.Add(int64(sessions))
		metricRoomsEvicted.Add(int64(rooms))
		log.Info().Int("sessions", sessions).Int("rooms", rooms).Msg("store cleanup")
	}
	return sessions, rooms
}
