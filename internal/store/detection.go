package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ayusman/fingers/internal/detector"
)

// FrameRecord is one logged frame and the hands found in it.
type FrameRecord struct {
	ID         string            `json:"id"`
	Seq        uint64            `json:"seq"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Latency    time.Duration     `json:"latency"`
	CapturedAt time.Time         `json:"captured_at"`
	Hands      []DetectionRecord `json:"hands"`
}

// DetectionRecord is a logged hand.
type DetectionRecord struct {
	Rank       int            `json:"rank"`
	Confidence float32        `json:"confidence"`
	Box        detector.Box   `json:"box"`
	Wrist      detector.Point `json:"wrist"`
	Anchor     int            `json:"anchor"`
}

// NewFrameRecord builds a record from pipeline output. Detections keep the
// pipeline's confidence order as their rank.
func NewFrameRecord(seq uint64, width, height int, latency time.Duration, at time.Time, dets []detector.Detection) *FrameRecord {
	f := &FrameRecord{
		Seq:        seq,
		Width:      width,
		Height:     height,
		Latency:    latency,
		CapturedAt: at,
		Hands:      make([]DetectionRecord, len(dets)),
	}
	for i, d := range dets {
		f.Hands[i] = DetectionRecord{
			Rank:       i,
			Confidence: d.Confidence,
			Box:        d.Box,
			Wrist:      d.Wrist(),
			Anchor:     d.AnchorIndex,
		}
	}
	return f
}

// DetectionRepository stores the detection log.
type DetectionRepository struct {
	db *sql.DB
}

// Detections returns the detection log repository.
func (s *Store) Detections() *DetectionRepository {
	return &DetectionRepository{db: s.db}
}

// Record inserts a frame and its hands in one transaction.
func (r *DetectionRepository) Record(f *FrameRecord) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CapturedAt.IsZero() {
		f.CapturedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO frames (id, seq, width, height, hands, latency_us, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, int64(f.Seq), f.Width, f.Height, len(f.Hands), f.Latency.Microseconds(), f.CapturedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "insert frame")
	}

	stmt, err := tx.Prepare(
		`INSERT INTO detections (frame_id, rank, confidence, x_min, y_min, x_max, y_max, wrist_x, wrist_y, anchor)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return errors.Wrap(err, "prepare detection insert")
	}
	defer stmt.Close()

	for _, h := range f.Hands {
		if _, err := stmt.Exec(f.ID, h.Rank, h.Confidence,
			h.Box.XMin, h.Box.YMin, h.Box.XMax, h.Box.YMax, h.Wrist.X, h.Wrist.Y, h.Anchor); err != nil {
			return errors.Wrap(err, "insert detection")
		}
	}

	return errors.Wrap(tx.Commit(), "commit")
}

// Recent returns up to limit frames, newest first, with their hands.
func (r *DetectionRepository) Recent(limit int) ([]*FrameRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, seq, width, height, latency_us, captured_at
		 FROM frames ORDER BY captured_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list frames")
	}

	frames := []*FrameRecord{}
	byID := make(map[string]*FrameRecord)
	for rows.Next() {
		f := &FrameRecord{Hands: []DetectionRecord{}}
		var seq, latency int64
		if err := rows.Scan(&f.ID, &seq, &f.Width, &f.Height, &latency, &f.CapturedAt); err != nil {
			rows.Close()
			return nil, err
		}
		f.Seq = uint64(seq)
		f.Latency = time.Duration(latency) * time.Microsecond
		frames = append(frames, f)
		byID[f.ID] = f
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return frames, nil
	}

	ids := make([]any, len(frames))
	for i, f := range frames {
		ids[i] = f.ID
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	drows, err := r.db.Query(
		`SELECT frame_id, rank, confidence, x_min, y_min, x_max, y_max, wrist_x, wrist_y, anchor
		 FROM detections WHERE frame_id IN (`+placeholders+`) ORDER BY frame_id, rank`, ids...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list detections")
	}
	defer drows.Close()

	for drows.Next() {
		var frameID string
		var h DetectionRecord
		if err := drows.Scan(&frameID, &h.Rank, &h.Confidence,
			&h.Box.XMin, &h.Box.YMin, &h.Box.XMax, &h.Box.YMax, &h.Wrist.X, &h.Wrist.Y, &h.Anchor); err != nil {
			return nil, err
		}
		if f, ok := byID[frameID]; ok {
			f.Hands = append(f.Hands, h)
		}
	}
	return frames, drows.Err()
}

// Count returns the number of logged frames.
func (r *DetectionRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM frames`).Scan(&n)
	return n, errors.Wrap(err, "count frames")
}

// Prune deletes frames captured before cutoff and returns how many were
// removed. A zero cutoff deletes everything.
func (r *DetectionRepository) Prune(cutoff time.Time) (int64, error) {
	var result sql.Result
	var err error
	if cutoff.IsZero() {
		result, err = r.db.Exec(`DELETE FROM frames`)
	} else {
		result, err = r.db.Exec(`DELETE FROM frames WHERE captured_at < ?`, cutoff.UTC())
	}
	if err != nil {
		return 0, errors.Wrap(err, "prune frames")
	}
	return result.RowsAffected()
}
