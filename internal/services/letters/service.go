package letters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/LetterTrack/internal/broker/messages"
	"github.com/BearBump/LetterTrack/internal/cache"
	"github.com/BearBump/LetterTrack/internal/integrations/laposte"
	"github.com/BearBump/LetterTrack/internal/models"
	"github.com/BearBump/LetterTrack/internal/storage/pgletters"
	"github.com/BearBump/LetterTrack/internal/tracking"
	"github.com/pkg/errors"
)

type Repository interface {
	GetLetterByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Letter, error)
	UpsertLetterStatus(ctx context.Context, trackingNumber, status string, isFinal bool) (*models.Letter, error)
	ListNonFinalLetters(ctx context.Context, page int, from, to *time.Time) ([]*models.Letter, error)
	ListLetters(ctx context.Context, from, to *time.Time) ([]*models.Letter, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// CannotTrackError — письмо не удалось оттрекать: ошибка провайдера,
// невалидный ответ или ответ без событий. Ошибки записи в БД сюда
// не попадают, они логируются внутри TrackLetter.
type CannotTrackError struct {
	ShipmentID string
	Reason     string
}

func (e *CannotTrackError) Error() string {
	return fmt.Sprintf("cannot track letter %s: %s", e.ShipmentID, e.Reason)
}

type Service struct {
	repo     Repository
	provider laposte.Fetcher

	cache    cache.BytesCache
	cacheTTL time.Duration

	producer Producer
	topic    string

	rl                 RateLimiter
	rateLimitPerMinute int64

	sweepInterval time.Duration
	triggerCh     chan struct{}

	sweepWG sync.WaitGroup

	startedAtUnixNano int64
	lastSweepUnixNano atomic.Int64
	sweepsStarted     atomic.Int64
	sweepsFinished    atomic.Int64
	lettersSwept      atomic.Int64
	sweepErrors       atomic.Int64
}

func New(repo Repository, provider laposte.Fetcher) *Service {
	return &Service{
		repo:              repo,
		provider:          provider,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Service) WithCache(c cache.BytesCache, ttl time.Duration) *Service {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

func (s *Service) WithProducer(p Producer, topic string) *Service {
	s.producer = p
	s.topic = topic
	return s
}

func (s *Service) WithRateLimit(rl RateLimiter, perMinute int64) *Service {
	s.rl = rl
	s.rateLimitPerMinute = perMinute
	return s
}

func (s *Service) WithSweepInterval(d time.Duration) *Service {
	s.sweepInterval = d
	return s
}

// TrackLetter опрашивает провайдера по одному письму, сохраняет новый статус
// вместе с записью истории и возвращает статус. Ошибка записи в БД не мешает
// вернуть статус, который провайдер только что подтвердил: она логируется,
// а письмо догонит своё состояние на следующем проходе.
func (s *Service) TrackLetter(ctx context.Context, shipmentID string) (string, error) {
	raw, err := s.provider.Fetch(ctx, shipmentID)
	if err != nil {
		return "", &CannotTrackError{ShipmentID: shipmentID, Reason: err.Error()}
	}

	res, err := tracking.Parse(raw)
	if err != nil {
		return "", &CannotTrackError{ShipmentID: shipmentID, Reason: "invalid response from API"}
	}

	status, err := res.LatestStatus()
	if err != nil {
		return "", &CannotTrackError{ShipmentID: shipmentID, Reason: "no tracking event"}
	}

	letter, err := s.repo.UpsertLetterStatus(ctx, shipmentID, status, res.IsFinal)
	if err != nil {
		slog.Error("save letter tracking info", "tracking_number", shipmentID, "error", err.Error())
		return status, nil
	}

	s.afterPersist(ctx, letter)
	return status, nil
}

// TrackAllRegisteredLetters возвращает текущий известный статус каждого
// письма и запускает фоновый проход по всем нефинальным письмам.
// Снапшот строится до старта прохода и не содержит его результатов.
func (s *Service) TrackAllRegisteredLetters(ctx context.Context) (map[string]string, error) {
	snapshot, err := s.snapshot(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	s.startSweep(ctx, nil, nil)
	return snapshot, nil
}

// TrackLettersUpdatedBetween — то же, что TrackAllRegisteredLetters,
// но снапшот и проход ограничены письмами, обновлёнными в [from, to].
func (s *Service) TrackLettersUpdatedBetween(ctx context.Context, from, to time.Time) (map[string]string, error) {
	snapshot, err := s.snapshot(ctx, &from, &to)
	if err != nil {
		return nil, err
	}
	s.startSweep(ctx, &from, &to)
	return snapshot, nil
}

// CurrentLetter возвращает последнее известное состояние письма без похода
// к провайдеру. Возвращает nil, если письмо ещё не отслеживалось.
func (s *Service) CurrentLetter(ctx context.Context, trackingNumber string) (*models.Letter, error) {
	if s.cache != nil && s.cacheTTL > 0 {
		b, ok, err := s.cache.Get(ctx, currentKey(trackingNumber))
		if err == nil && ok {
			var l models.Letter
			if json.Unmarshal(b, &l) == nil {
				return &l, nil
			}
		}
	}

	l, err := s.repo.GetLetterByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, nil
	}
	if s.cache != nil && s.cacheTTL > 0 {
		b, _ := json.Marshal(l)
		_ = s.cache.Set(ctx, currentKey(l.TrackingNumber), b, s.cacheTTL)
	}
	return l, nil
}

// WaitSweeps блокируется, пока не завершатся все запущенные проходы.
// Нужен тестам; в продакшене проходы остаются fire-and-forget.
func (s *Service) WaitSweeps() {
	s.sweepWG.Wait()
}

func (s *Service) snapshot(ctx context.Context, from, to *time.Time) (map[string]string, error) {
	ls, err := s.repo.ListLetters(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list letters")
	}
	statuses := make(map[string]string, len(ls))
	for _, l := range ls {
		statuses[l.TrackingNumber] = l.Status
	}
	return statuses, nil
}

func (s *Service) startSweep(ctx context.Context, from, to *time.Time) {
	// Проход переживает запрос, который его запустил.
	sctx := context.WithoutCancel(ctx)
	s.sweepWG.Add(1)
	s.sweepsStarted.Add(1)
	go func() {
		defer s.sweepWG.Done()
		s.sweep(sctx, from, to)
	}()
}

func (s *Service) sweep(ctx context.Context, from, to *time.Time) {
	defer s.sweepsFinished.Add(1)
	s.lastSweepUnixNano.Store(time.Now().UTC().UnixNano())

	for page := 1; ; page++ {
		batch, err := s.repo.ListNonFinalLetters(ctx, page, from, to)
		if err != nil {
			s.sweepErrors.Add(1)
			slog.Error("list non-final letters", "page", page, "error", err.Error())
			return
		}
		for _, l := range batch {
			s.throttle(ctx)
			if _, err := s.TrackLetter(ctx, l.TrackingNumber); err != nil {
				s.sweepErrors.Add(1)
				slog.Error("track letter in sweep", "tracking_number", l.TrackingNumber, "error", err.Error())
			}
			s.lettersSwept.Add(1)
		}
		if len(batch) < pgletters.PageSize {
			return
		}
	}
}

func (s *Service) throttle(ctx context.Context) {
	if s.rl == nil || s.rateLimitPerMinute <= 0 {
		return
	}
	minuteKey := fmt.Sprintf("rl:laposte:%s", time.Now().UTC().Format("200601021504"))
	allowed, n, err := s.rl.Allow(ctx, minuteKey, s.rateLimitPerMinute, 70*time.Second)
	if err != nil {
		slog.Warn("rate limiter unavailable", "error", err.Error())
		return
	}
	if !allowed {
		// Слишком много запросов в минуту: подождём немного, чтобы разгрузить источник.
		slog.Warn("rate limit exceeded", "count", n)
		time.Sleep(500 * time.Millisecond)
	}
}

func (s *Service) afterPersist(ctx context.Context, l *models.Letter) {
	if s.cache != nil && s.cacheTTL > 0 {
		b, _ := json.Marshal(l)
		_ = s.cache.Set(ctx, currentKey(l.TrackingNumber), b, s.cacheTTL)
	}

	if s.producer != nil && s.topic != "" {
		msg := messages.LetterStatusUpdated{
			TrackingNumber: l.TrackingNumber,
			Status:         l.Status,
			IsFinal:        l.Final,
			TrackedAt:      l.Updated,
		}
		b, _ := json.Marshal(msg)
		if err := s.producer.Publish(ctx, s.topic, []byte(l.TrackingNumber), b); err != nil {
			slog.Error("publish letter status", "tracking_number", l.TrackingNumber, "error", err.Error())
		}
	}
}

func currentKey(trackingNumber string) string {
	return fmt.Sprintf("letter:%s:current", trackingNumber)
}
