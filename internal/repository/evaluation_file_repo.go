package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-evaluation-api/internal/lock"
	"github.com/noah-isme/gema-evaluation-api/internal/models"
	"github.com/noah-isme/gema-evaluation-api/internal/observability"
)

type evaluationFileRepository struct {
	baseDir string
	locks   *lock.KeyedMutex
	logger  zerolog.Logger
	now     func() time.Time
}

// NewEvaluationFileRepository stores evaluations as JSON files sharded by department:
// baseDir/{department}/{rater}_{ratee}_{form}_{period}.json.
func NewEvaluationFileRepository(baseDir string, logger zerolog.Logger) (EvaluationRepository, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("evaluation base directory must not be empty")
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve evaluation base directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create evaluation base directory: %w", err)
	}

	return &evaluationFileRepository{
		baseDir: abs,
		locks:   lock.NewKeyedMutex(),
		logger:  logger.With().Str("component", "evaluation_file_repository").Logger(),
		now:     time.Now,
	}, nil
}

func (r *evaluationFileRepository) recordPath(departmentID string, key models.EvaluationKey) (string, string, error) {
	dir, err := shardDir(r.baseDir, departmentID)
	if err != nil {
		return "", "", err
	}
	name, err := recordFileName(key)
	if err != nil {
		return "", "", err
	}
	return dir, filepath.Join(dir, name), nil
}

func (r *evaluationFileRepository) Get(ctx context.Context, departmentID string, key models.EvaluationKey) (models.Evaluation, error) {
	defer observeStore("file", "get", time.Now())

	_, path, err := r.recordPath(departmentID, key)
	if err != nil {
		return models.Evaluation{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Evaluation{}, err
	}

	envelope, err := r.read(path)
	if err != nil {
		return models.Evaluation{}, err
	}
	if envelope.Evaluation.Key() != key {
		return models.Evaluation{}, fmt.Errorf("%w: key mismatch", ErrCorruptRecord)
	}

	return envelope.Evaluation, nil
}

func (r *evaluationFileRepository) Exists(ctx context.Context, departmentID string, key models.EvaluationKey) (bool, error) {
	_, err := r.Get(ctx, departmentID, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrEvaluationNotFound), errors.Is(err, ErrCorruptRecord):
		return false, nil
	default:
		return false, err
	}
}

func (r *evaluationFileRepository) Upsert(ctx context.Context, departmentID string, evaluation *models.Evaluation) error {
	defer observeStore("file", "upsert", time.Now())

	if evaluation == nil {
		return fmt.Errorf("evaluation must not be nil")
	}

	dir, path, err := r.recordPath(departmentID, evaluation.Key())
	if err != nil {
		return err
	}

	unlock, err := r.locks.Lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := r.read(path)
	if err == nil && existing.Evaluation.Key() != evaluation.Key() {
		err = fmt.Errorf("%w: key mismatch", ErrCorruptRecord)
	}
	switch {
	case err == nil:
		evaluation.ID = existing.Evaluation.ID
		evaluation.CreatedAt = existing.Evaluation.CreatedAt
	case errors.Is(err, ErrEvaluationNotFound):
	case errors.Is(err, ErrCorruptRecord):
		r.logger.Warn().Err(err).Str("department_id", departmentID).Msg("overwriting corrupt evaluation record")
	default:
		return err
	}

	now := r.now().UTC()
	if evaluation.ID == "" {
		evaluation.ID = uuid.NewString()
	}
	if evaluation.CreatedAt.IsZero() {
		evaluation.CreatedAt = now
	}
	if evaluation.UpdatedAt.IsZero() {
		evaluation.UpdatedAt = now
	}

	key := evaluation.Key()
	content, err := encodeEnvelope(models.EvaluationEnvelope{
		Evaluation: *evaluation,
		Meta: models.EvaluationMeta{
			RaterID:      key.RaterID,
			RateeID:      key.RateeID,
			FormID:       key.FormID,
			PeriodID:     key.PeriodID,
			DepartmentID: departmentID,
			SavedAt:      now,
		},
	})
	if err != nil {
		return storageError("encode", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageError("mkdir", err)
	}

	return storageError("write", writeFileAtomic(dir, path, content))
}

func (r *evaluationFileRepository) ListCompletedForDepartment(ctx context.Context, departmentID string) ([]models.Evaluation, error) {
	defer observeStore("file", "list_department", time.Now())

	dir, err := shardDir(r.baseDir, departmentID)
	if err != nil {
		return nil, err
	}

	collected, err := r.walk(ctx, dir)
	if err != nil {
		return nil, err
	}

	items := make([]models.Evaluation, 0, len(collected))
	for _, evaluation := range collected {
		if evaluation.Completed {
			items = append(items, evaluation)
		}
	}

	sortBySubmittedAt(items)
	return items, nil
}

func (r *evaluationFileRepository) ListAll(ctx context.Context) ([]models.Evaluation, error) {
	defer observeStore("file", "list_all", time.Now())

	items, err := r.walk(ctx, r.baseDir)
	if err != nil {
		return nil, err
	}

	sortBySubmittedAt(items)
	return items, nil
}

type walkedRecord struct {
	evaluation models.Evaluation
	canonical  bool
}

// walk decodes every JSON record under root, skipping unreadable files.
// A key found more than once keeps the copy at its own shard path, else the newest submission.
func (r *evaluationFileRepository) walk(ctx context.Context, root string) ([]models.Evaluation, error) {
	found := make(map[models.EvaluationKey]walkedRecord)
	order := make([]models.EvaluationKey, 0)

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root && errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipDir
			}
			r.logger.Warn().Err(walkErr).Str("file", r.relative(path)).Msg("skipping unreadable evaluation path")
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || !entry.Type().IsRegular() {
			return nil
		}

		envelope, err := r.read(path)
		if err != nil {
			observability.EvaluationCorruptRecords().WithLabelValues("file").Inc()
			r.logger.Warn().Err(err).Str("file", r.relative(path)).Msg("skipping unreadable evaluation record")
			return nil
		}

		candidate := walkedRecord{evaluation: envelope.Evaluation, canonical: r.isShardPath(path, envelope.Evaluation.Key())}
		key := envelope.Evaluation.Key()
		current, seen := found[key]
		if !seen {
			order = append(order, key)
			found[key] = candidate
			return nil
		}
		if preferRecord(candidate, current) {
			found[key] = candidate
		}
		r.logger.Warn().Str("file", r.relative(path)).Msg("duplicate evaluation record for key")
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, storageError("list", err)
	}

	items := make([]models.Evaluation, 0, len(order))
	for _, key := range order {
		items = append(items, found[key].evaluation)
	}
	return items, nil
}

// isShardPath reports whether path is where Upsert would write key: baseDir/{department}/{name}.
func (r *evaluationFileRepository) isShardPath(path string, key models.EvaluationKey) bool {
	name, err := recordFileName(key)
	if err != nil {
		return false
	}
	return filepath.Base(path) == name && filepath.Dir(filepath.Dir(path)) == r.baseDir
}

func (r *evaluationFileRepository) relative(path string) string {
	rel, err := filepath.Rel(r.baseDir, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}

func preferRecord(candidate, current walkedRecord) bool {
	if candidate.canonical != current.canonical {
		return candidate.canonical
	}
	a, b := candidate.evaluation.SubmittedAt, current.evaluation.SubmittedAt
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}

func (r *evaluationFileRepository) read(path string) (models.EvaluationEnvelope, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.EvaluationEnvelope{}, ErrEvaluationNotFound
		}
		return models.EvaluationEnvelope{}, storageError("read", err)
	}

	return decodeEnvelope(content)
}

// writeFileAtomic writes content to a temp file in dir and renames it over path,
// so a failed write never leaves a truncated record behind.
func writeFileAtomic(dir, path string, content []byte) (err error) {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

func observeStore(backend, op string, started time.Time) {
	observability.EvaluationStoreLatency().WithLabelValues(backend, op).Observe(time.Since(started).Seconds())
}
