package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrCodingRobot/EmergencyStations/internal/metrics"
	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations/repository"
	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations/types"
	"github.com/MrCodingRobot/EmergencyStations/internal/publish"
	"github.com/MrCodingRobot/EmergencyStations/internal/telemetry"
)

var ErrUnknownStation = errors.New("unknown station")

// Fetcher lists a station's inbound mail. FetchNew reads the inbox whose
// messages Delete removes; FetchLast reads the newest n from the archive.
type Fetcher interface {
	FetchNew(ctx context.Context, address string) ([]telemetry.RawTransmission, error)
	FetchLast(ctx context.Context, address string, n int) ([]telemetry.RawTransmission, error)
	Delete(ctx context.Context, handles []string) error
}

type StatusSink interface {
	PublishStatus(ctx context.Context, st types.Status) error
}

// StatusCache is a sink that can also answer status reads.
type StatusCache interface {
	StatusSink
	GetStatus(ctx context.Context, station int) (types.Status, bool, error)
	GetStatuses(ctx context.Context, stations []int) ([]types.Status, error)
}

type ArtifactGenerator interface {
	Generate(ctx context.Context, reports []publish.Report) ([]publish.Artifact, error)
}

type Uploader interface {
	Upload(ctx context.Context, artifacts []publish.Artifact) error
}

type Notifier interface {
	NotifyFailure(ctx context.Context, cause error, attempt int) error
}

// Options wires a Service. Only Stations and Repository are required; a
// nil collaborator disables its step.
type Options struct {
	Stations   []telemetry.Station
	Repository repository.StationRepository

	Fetcher   Fetcher
	Cache     StatusCache
	Sinks     []StatusSink
	Generator ArtifactGenerator
	Uploader  Uploader
	Notifier  Notifier
	Logger    *slog.Logger

	// BackfillCount is how many archived messages per station the first
	// cycle reads before switching to the inbox.
	BackfillCount   int
	DeleteProcessed bool
	Workers         int
	Interval        time.Duration
	// MaxFailures stops Run after that many consecutive failed cycles;
	// 0 never stops.
	MaxFailures int
	Now         func() time.Time
}

type Service struct {
	opts     Options
	stations []telemetry.Station
	byNumber map[int]telemetry.Station
	repo     repository.StationRepository
	logger   *slog.Logger
	now      func() time.Time

	// locks serializes ingest per station.
	locks map[int]*sync.Mutex

	mu         sync.Mutex
	backfilled map[int]bool
	rejected   map[string]bool
}

func NewService(opts Options) (*Service, error) {
	if opts.Repository == nil {
		return nil, errors.New("stations service: repository is required")
	}
	if len(opts.Stations) == 0 {
		return nil, errors.New("stations service: no stations configured")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		opts:       opts,
		stations:   opts.Stations,
		byNumber:   make(map[int]telemetry.Station, len(opts.Stations)),
		repo:       opts.Repository,
		logger:     opts.Logger,
		now:        opts.Now,
		locks:      make(map[int]*sync.Mutex, len(opts.Stations)),
		backfilled: make(map[int]bool),
		rejected:   make(map[string]bool),
	}
	for _, st := range opts.Stations {
		s.byNumber[st.Number] = st
		s.locks[st.Number] = &sync.Mutex{}
	}
	return s, nil
}

// CycleResult summarizes one ingest cycle.
type CycleResult struct {
	RunID        string
	Stored       int
	SamplesAdded int
	Artifacts    []publish.Artifact
}

// RunCycle ingests new mail for every station in parallel, then refreshes
// statuses and artifacts. Bad transmissions are logged and skipped; the
// returned error reports fetch, store, generate or upload failures.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	defer metrics.ObserveCycle(start)

	res := CycleResult{RunID: uuid.NewString()}
	logger := s.logger.With("run_id", res.RunID)
	logger.Info("ingest cycle started", "stations", len(s.stations))

	var (
		errsMu sync.Mutex
		errs   []error
		statMu sync.Mutex
	)
	if s.opts.Fetcher != nil {
		var g errgroup.Group
		g.SetLimit(s.opts.Workers)
		for _, st := range s.stations {
			g.Go(func() error {
				stored, added, err := s.ingestStation(ctx, logger, st)
				statMu.Lock()
				res.Stored += stored
				res.SamplesAdded += added
				statMu.Unlock()
				if err != nil {
					errsMu.Lock()
					errs = append(errs, fmt.Errorf("station %d: %w", st.Number, err))
					errsMu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	reports, err := s.reports(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		s.publishStatuses(ctx, logger, reports)
		artifacts, err := s.publishArtifacts(ctx, reports)
		res.Artifacts = artifacts
		if err != nil {
			errs = append(errs, err)
		}
	}

	err = errors.Join(errs...)
	logger.Info("ingest cycle finished",
		"stored", res.Stored,
		"samples_added", res.SamplesAdded,
		"artifacts", len(res.Artifacts),
		"elapsed", time.Since(start),
		"failed", err != nil,
	)
	return res, err
}

func (s *Service) ingestStation(ctx context.Context, logger *slog.Logger, st telemetry.Station) (stored, added int, err error) {
	lock := s.locks[st.Number]
	lock.Lock()
	defer lock.Unlock()

	logger = logger.With("station_id", st.Number)

	s.mu.Lock()
	backfill := !s.backfilled[st.Number]
	s.mu.Unlock()

	var raws []telemetry.RawTransmission
	if backfill {
		raws, err = s.opts.Fetcher.FetchLast(ctx, st.Address, s.opts.BackfillCount)
	} else {
		raws, err = s.opts.Fetcher.FetchNew(ctx, st.Address)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("fetch mail: %w", err)
	}
	logger.Debug("mail fetched", "count", len(raws), "backfill", backfill)

	var (
		series    telemetry.Series
		loaded    bool
		processed []string
	)
	for _, raw := range raws {
		tlog := logger.With("transmission_id", raw.ID)

		seen, err := s.repo.HasTransmission(ctx, st.Number, raw.ID)
		if err != nil {
			return stored, added, fmt.Errorf("check transmission %q: %w", raw.ID, err)
		}
		if seen {
			metrics.Transmissions.WithLabelValues(metrics.OutcomeDuplicate).Inc()
			processed = append(processed, raw.Handle)
			continue
		}

		upd, err := telemetry.Process(raw, st)
		if err != nil {
			s.reject(tlog, st.Number, raw.ID, err)
			continue
		}
		if upd.NumberMismatch() {
			tlog.Warn("payload station number differs from registry", "transmitted", upd.TransmittedNumber)
		}
		if upd.Discrepancy {
			metrics.Discrepancies.Inc()
			tlog.Warn("snapshot disagrees with indexed slot; using snapshot")
		}

		if len(upd.Samples) > 0 && !loaded {
			if series, err = s.repo.GetSeries(ctx, st.Number); err != nil {
				return stored, added, fmt.Errorf("load series: %w", err)
			}
			loaded = true
		}
		merged := telemetry.Merge(series, upd.Samples)
		newSamples := len(merged) - len(series)

		if err := s.repo.SaveUpdate(ctx, upd); err != nil {
			metrics.Transmissions.WithLabelValues(metrics.OutcomeStore).Inc()
			return stored, added, fmt.Errorf("save transmission %q: %w", raw.ID, err)
		}
		series = merged
		stored++
		added += newSamples
		processed = append(processed, raw.Handle)

		if upd.Transmission.HasPayload() {
			metrics.Transmissions.WithLabelValues(metrics.OutcomeStored).Inc()
			metrics.SamplesAdded.WithLabelValues(strconv.Itoa(st.Number)).Add(float64(newSamples))
			tlog.Info("transmission stored",
				"samples", len(upd.Samples),
				"samples_added", newSamples,
				"alarm", upd.Transmission.Alarm,
				"transmit_time", upd.Transmission.TransmitTime,
			)
		} else {
			metrics.Transmissions.WithLabelValues(metrics.OutcomeNoPayload).Inc()
			tlog.Info("transmission without payload")
		}
	}

	s.mu.Lock()
	s.backfilled[st.Number] = true
	s.mu.Unlock()

	if !backfill && s.opts.DeleteProcessed && len(processed) > 0 {
		if err := s.opts.Fetcher.Delete(ctx, processed); err != nil {
			return stored, added, fmt.Errorf("delete processed mail: %w", err)
		}
	}
	return stored, added, nil
}

// reject logs a transmission that cannot be processed, once per process.
func (s *Service) reject(logger *slog.Logger, station int, id string, err error) {
	outcome := metrics.OutcomeParse
	if errors.Is(err, telemetry.ErrMalformed) || errors.Is(err, telemetry.ErrWrongLength) {
		outcome = metrics.OutcomeDecode
	}
	key := strconv.Itoa(station) + "/" + id

	s.mu.Lock()
	seen := s.rejected[key]
	s.rejected[key] = true
	s.mu.Unlock()
	if seen {
		return
	}
	metrics.Transmissions.WithLabelValues(outcome).Inc()
	logger.Warn("transmission skipped", "outcome", outcome, "error", err)
}

func (s *Service) reports(ctx context.Context) ([]publish.Report, error) {
	out := make([]publish.Report, 0, len(s.stations))
	for _, st := range s.stations {
		r, err := s.report(ctx, st)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) report(ctx context.Context, st telemetry.Station) (publish.Report, error) {
	series, err := s.repo.GetSeries(ctx, st.Number)
	if err != nil {
		return publish.Report{}, fmt.Errorf("station %d: load series: %w", st.Number, err)
	}
	last, err := s.repo.GetLatestTransmission(ctx, st.Number)
	if err != nil {
		return publish.Report{}, fmt.Errorf("station %d: latest transmission: %w", st.Number, err)
	}
	return publish.Report{Status: telemetry.NewLatestStatus(st, series, last), History: series}, nil
}

func (s *Service) sinks() []StatusSink {
	out := make([]StatusSink, 0, len(s.opts.Sinks)+1)
	if s.opts.Cache != nil {
		out = append(out, s.opts.Cache)
	}
	return append(out, s.opts.Sinks...)
}

// publishStatuses is best effort; a sink failure never fails the cycle.
func (s *Service) publishStatuses(ctx context.Context, logger *slog.Logger, reports []publish.Report) {
	sinks := s.sinks()
	if len(sinks) == 0 {
		return
	}
	now := s.now()
	for _, r := range reports {
		st := types.StatusFrom(r.Status, now)
		for _, sink := range sinks {
			if err := sink.PublishStatus(ctx, st); err != nil {
				logger.Warn("status publish failed", "station_id", st.Station, "sink", fmt.Sprintf("%T", sink), "error", err)
			}
		}
	}
}

func (s *Service) publishArtifacts(ctx context.Context, reports []publish.Report) ([]publish.Artifact, error) {
	if s.opts.Generator == nil {
		return nil, nil
	}
	artifacts, err := s.opts.Generator.Generate(ctx, reports)
	if err != nil {
		return artifacts, fmt.Errorf("generate artifacts: %w", err)
	}
	if s.opts.Uploader == nil {
		return artifacts, nil
	}
	if err := s.opts.Uploader.Upload(ctx, artifacts); err != nil {
		return artifacts, fmt.Errorf("upload artifacts: %w", err)
	}
	return artifacts, nil
}

// Run repeats RunCycle every Interval until ctx is done. Each failed cycle
// is reported to the Notifier; after MaxFailures consecutive failures Run
// returns the last error.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		_, err := s.RunCycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			failures++
			metrics.CycleFailures.Inc()
			s.logger.Error("ingest cycle failed", "attempt", failures, "max", s.opts.MaxFailures, "error", err)
			if s.opts.Notifier != nil {
				if nerr := s.opts.Notifier.NotifyFailure(ctx, err, failures); nerr != nil {
					s.logger.Warn("failure notification not sent", "error", nerr)
				}
			}
			if s.opts.MaxFailures > 0 && failures >= s.opts.MaxFailures {
				return fmt.Errorf("giving up after %d consecutive failed cycles: %w", failures, err)
			}
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) Stations() []types.Station {
	out := make([]types.Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, types.StationFrom(st))
	}
	return out
}

// Status prefers the cache and falls back to the store.
func (s *Service) Status(ctx context.Context, number int) (types.Status, error) {
	st, ok := s.byNumber[number]
	if !ok {
		return types.Status{}, ErrUnknownStation
	}
	if s.opts.Cache != nil {
		cached, hit, err := s.opts.Cache.GetStatus(ctx, number)
		if err != nil {
			s.logger.Warn("status cache read failed", "station_id", number, "error", err)
		} else if hit {
			return cached, nil
		}
	}
	r, err := s.report(ctx, st)
	if err != nil {
		return types.Status{}, err
	}
	return types.StatusFrom(r.Status, s.now()), nil
}

// Statuses returns every station's status in registry order.
func (s *Service) Statuses(ctx context.Context) ([]types.Status, error) {
	if s.opts.Cache != nil {
		numbers := make([]int, len(s.stations))
		for i, st := range s.stations {
			numbers[i] = st.Number
		}
		cached, err := s.opts.Cache.GetStatuses(ctx, numbers)
		if err != nil {
			s.logger.Warn("status cache read failed", "error", err)
		} else if len(cached) == len(numbers) {
			return cached, nil
		}
	}
	out := make([]types.Status, 0, len(s.stations))
	for _, st := range s.stations {
		status, err := s.Status(ctx, st.Number)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

// Samples returns the newest limit samples of a station, oldest first.
func (s *Service) Samples(ctx context.Context, number int, limit int) ([]types.Sample, error) {
	if _, ok := s.byNumber[number]; !ok {
		return nil, ErrUnknownStation
	}
	series, err := s.repo.GetSamples(ctx, number, limit)
	if err != nil {
		return nil, err
	}
	return types.SamplesFrom(series), nil
}
