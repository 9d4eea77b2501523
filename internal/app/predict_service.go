package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"caffmed-api/internal/decision"
	"caffmed-api/internal/inference"
	"caffmed-api/internal/model"
	"caffmed-api/internal/vision"
)

const (
	msgModelUnavailable = "Model not loaded or not found."
	msgDecode           = "Error processing image: the file is not a readable JPEG, PNG or WebP image"
)

// VerdictCache stores verdicts by the SHA-256 digest of the uploaded bytes.
type VerdictCache interface {
	Get(ctx context.Context, digest string) (decision.Verdict, bool, error)
	Set(ctx context.Context, digest string, v decision.Verdict) error
}

// PredictionRecorder keeps an audit trail of served predictions.
type PredictionRecorder interface {
	Record(ctx context.Context, p model.Prediction) error
}

// RecorderFunc adapts a function to PredictionRecorder.
type RecorderFunc func(ctx context.Context, p model.Prediction) error

func (f RecorderFunc) Record(ctx context.Context, p model.Prediction) error {
	return f(ctx, p)
}

// PredictService runs validate-normalize-infer-decide for one upload. It holds
// no per-request state and is safe for concurrent use.
type PredictService struct {
	model      *inference.Handle
	normalizer *vision.Normalizer
	policy     *decision.Policy
	cache      VerdictCache
	recorder   PredictionRecorder
	log        *zap.Logger
}

type PredictServiceOption func(*PredictService)

func WithVerdictCache(c VerdictCache) PredictServiceOption {
	return func(s *PredictService) { s.cache = c }
}

func WithRecorder(r PredictionRecorder) PredictServiceOption {
	return func(s *PredictService) { s.recorder = r }
}

func NewPredictService(
	handle *inference.Handle,
	normalizer *vision.Normalizer,
	policy *decision.Policy,
	log *zap.Logger,
	opts ...PredictServiceOption,
) *PredictService {
	s := &PredictService{
		model:      handle,
		normalizer: normalizer,
		policy:     policy,
		log:        log.Named("predict"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type PredictInput struct {
	RequestID string
	Filename  string
	Data      []byte
}

type PredictResult struct {
	Verdict decision.Verdict
	Cached  bool
}

// Predict classifies one upload. Decode failures and an unavailable model are
// returned as *Error values of the matching Kind.
func (s *PredictService) Predict(ctx context.Context, in PredictInput) (*PredictResult, error) {
	digest := digestOf(in.Data)
	log := s.log.With(zap.String("request_id", in.RequestID), zap.String("sha256", digest))

	if !s.model.Ready() {
		err := NewError(KindModelUnavailable, msgModelUnavailable, s.model.Err())
		s.record(ctx, in, digest, decision.Failure(err.Message), false)
		return nil, err
	}

	if s.cache != nil {
		v, ok, err := s.cache.Get(ctx, digest)
		if err != nil {
			log.Warn("verdict cache read failed", zap.Error(err))
		} else if ok {
			s.record(ctx, in, digest, v, true)
			return &PredictResult{Verdict: v, Cached: true}, nil
		}
	}

	v, err := s.classify(in.Data)
	if err != nil {
		appErr := AsError(err)
		if appErr.Kind == KindInternal {
			log.Error("prediction failed", zap.Error(err))
		} else {
			log.Info("prediction rejected", zap.Stringer("kind", appErr.Kind), zap.Error(err))
		}
		s.record(ctx, in, digest, decision.Failure(appErr.Message), false)
		return nil, appErr
	}

	if s.cache != nil && !v.Failed() {
		if err := s.cache.Set(ctx, digest, v); err != nil {
			log.Warn("verdict cache write failed", zap.Error(err))
		}
	}
	log.Info("prediction served",
		zap.String("label", v.Label),
		zap.Float64("confidence", v.Confidence),
		zap.Int("bytes", len(in.Data)),
	)
	s.record(ctx, in, digest, v, false)
	return &PredictResult{Verdict: v}, nil
}

// CheckRaw classifies an unnamed payload without touching the cache or the
// history. Failures are folded into the verdict.
func (s *PredictService) CheckRaw(data []byte) decision.Verdict {
	if !s.model.Ready() {
		return decision.Failure(msgModelUnavailable)
	}
	v, err := s.classify(data)
	if err != nil {
		appErr := AsError(err)
		if appErr.Kind == KindInternal {
			s.log.Error("model check failed", zap.Error(err))
		}
		return decision.Failure(appErr.Message)
	}
	return v
}

func (s *PredictService) classify(data []byte) (decision.Verdict, error) {
	tensor, err := s.normalizer.Normalize(data)
	if err != nil {
		if errors.Is(err, vision.ErrDecode) {
			return decision.Verdict{}, NewError(KindDecode, msgDecode, err)
		}
		return decision.Verdict{}, err
	}

	raw, err := s.model.Infer(tensor)
	if err != nil {
		if errors.Is(err, inference.ErrModelUnavailable) {
			return decision.Verdict{}, NewError(KindModelUnavailable, msgModelUnavailable, err)
		}
		return decision.Verdict{}, err
	}

	v := s.policy.Decide(raw, data)
	if v.Failed() {
		return decision.Verdict{}, errors.New(v.Error)
	}
	return v, nil
}

func (s *PredictService) record(ctx context.Context, in PredictInput, digest string, v decision.Verdict, cached bool) {
	if s.recorder == nil {
		return
	}
	rec := model.Prediction{
		RequestID:  in.RequestID,
		Filename:   in.Filename,
		SizeBytes:  int64(len(in.Data)),
		SHA256:     digest,
		Label:      v.Label,
		Confidence: v.Confidence,
		Error:      v.Error,
		Cached:     cached,
		CreatedAt:  time.Now(),
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.recorder.Record(recordCtx, rec); err != nil {
		s.log.Warn("record prediction failed", zap.String("request_id", in.RequestID), zap.Error(err))
	}
}

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
