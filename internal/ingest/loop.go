package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	json "github.com/goccy/go-json"

	"github.com/pokewatch/pokewatch/internal/store"
)

// Event type tags understood by the loop.
const (
	EventPokemon   = "pokemon"
	EventLongSpawn = "longspawn"
	EventFort      = "fort"
)

// Summary counts what one ingestion run saw.
type Summary struct {
	Sightings  int `json:"sightings"`
	LongSpawns int `json:"longspawns"`
	Forts      int `json:"forts"`
	Malformed  int `json:"malformed"`
}

// Total returns the number of well-formed events processed.
func (s Summary) Total() int {
	return s.Sightings + s.LongSpawns + s.Forts
}

// Loop reads newline-delimited JSON events and dispatches them to a
// Recorder. Each line carries a "type" tag naming the event kind.
type Loop struct {
	rec    *Recorder
	reader *bufio.Reader
	log    *slog.Logger
}

func NewLoop(rec *Recorder, r io.Reader, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		rec:    rec,
		reader: bufio.NewReader(r),
		log:    logger,
	}
}

type envelope struct {
	Type string `json:"type"`
}

// Run consumes events until EOF, a store error, or context cancellation.
// Malformed lines are counted and skipped; store errors abort the run and
// surface to the caller.
func (l *Loop) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	for {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		line, err := l.reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if err := l.dispatch(trimmed, &sum); err != nil {
				return sum, err
			}
		}
		if err == io.EOF {
			return sum, nil
		}
		if err != nil {
			return sum, fmt.Errorf("read error: %w", err)
		}
	}
}

func (l *Loop) dispatch(line []byte, sum *Summary) error {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		sum.Malformed++
		l.log.Error("malformed event", "err", err)
		return nil
	}

	switch env.Type {
	case EventPokemon:
		var ev store.SightingEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			sum.Malformed++
			l.log.Error("malformed pokemon event", "err", err)
			return nil
		}
		if err := l.rec.RecordSighting(&ev); err != nil {
			return err
		}
		sum.Sightings++
	case EventLongSpawn:
		var ev store.SightingEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			sum.Malformed++
			l.log.Error("malformed longspawn event", "err", err)
			return nil
		}
		if err := l.rec.RecordLongSpawn(&ev); err != nil {
			return err
		}
		sum.LongSpawns++
	case EventFort:
		var ev store.FortEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			sum.Malformed++
			l.log.Error("malformed fort event", "err", err)
			return nil
		}
		if err := l.rec.RecordFortSighting(&ev); err != nil {
			return err
		}
		sum.Forts++
	default:
		sum.Malformed++
		l.log.Error("unknown event type", "type", env.Type)
	}
	return nil
}
