package state

import (
	"database/sql"
	"errors"
	"time"

	"github.com/llehouerou/cadence/internal/playback"
)

// Session is what is restored on the next start.
type Session struct {
	Tracks []playback.Track
	Index   int // current entry, -1 if none
	Volume  float64
	Repeat  playback.RepeatMode
	Shuffle bool
}

// Remaining returns the current entry and those after it. With no current
// entry the whole queue is returned.
func (s Session) Remaining() []playback.Track {
	if s.Index <= 0 || s.Index >= len(s.Tracks) {
		return s.Tracks
	}
	return s.Tracks[s.Index:]
}

// FromSnapshot captures the session part of a playback snapshot.
func FromSnapshot(snap playback.Snapshot) Session {
	return Session{
		Tracks:  snap.Queue,
		Index:   snap.Index,
		Volume:  snap.Volume,
		Repeat:  snap.Repeat,
		Shuffle: snap.Shuffle,
	}
}

func getSession(db *sql.DB) (*Session, error) {
	s := &Session{}
	row := db.QueryRow(`SELECT current_index, volume, repeat_mode, shuffle FROM session_state WHERE id = 1`)
	err := row.Scan(&s.Index, &s.Volume, &s.Repeat, &s.Shuffle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT path, codec, frames, sample_rate, title, artist, album, track_number
		FROM queue_tracks
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t playback.Track
		var codec, title, artist, album sql.NullString
		var frames, rate, trackNumber sql.NullInt64

		if err := rows.Scan(&t.Path, &codec, &frames, &rate, &title, &artist, &album, &trackNumber); err != nil {
			return nil, err
		}

		t.Codec = codec.String
		t.Frames = frames.Int64
		t.SampleRate = int(rate.Int64)
		t.Title = title.String
		t.Artist = artist.String
		t.Album = album.String
		t.TrackNumber = int(trackNumber.Int64)
		s.Tracks = append(s.Tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if s.Index >= len(s.Tracks) {
		s.Index = -1
	}
	return s, nil
}

func saveSession(db *sql.DB, s Session) error {
	return withTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM queue_tracks`); err != nil {
			return err
		}

		_, err := tx.Exec(`
			INSERT INTO session_state (id, current_index, volume, repeat_mode, shuffle, saved_at)
			VALUES (1, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				current_index = excluded.current_index,
				volume = excluded.volume,
				repeat_mode = excluded.repeat_mode,
				shuffle = excluded.shuffle,
				saved_at = excluded.saved_at
		`, s.Index, s.Volume, int(s.Repeat), s.Shuffle, time.Now().Unix())
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO queue_tracks (position, path, codec, frames, sample_rate, title, artist, album, track_number)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range s.Tracks {
			_, err = stmt.Exec(i, t.Path,
				nullString(t.Codec), nullInt(t.Frames), nullInt(int64(t.SampleRate)),
				nullString(t.Title), nullString(t.Artist), nullString(t.Album),
				nullInt(int64(t.TrackNumber)))
			if err != nil {
				return err
			}
		}
		return nil
	})
}
