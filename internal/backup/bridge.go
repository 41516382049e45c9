// Package backup exports the whole store as one versioned snapshot and
// restores it again, replacing everything that was there.
package backup

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Tiliavir/worklog/internal/logging"
	"github.com/Tiliavir/worklog/internal/model"
	"github.com/Tiliavir/worklog/internal/storage"
	"github.com/Tiliavir/worklog/internal/worklog"
)

// SnapshotVersion is written into every export. Imports accept it or an
// empty version.
const SnapshotVersion = "1.0.0"

// Bridge moves snapshots in and out of a store.
type Bridge struct {
	store    *storage.Store
	service  *worklog.Service
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

// New returns a Bridge. service provides the reconciled reads for Export.
func New(store *storage.Store, service *worklog.Service, log *zap.Logger) *Bridge {
	return &Bridge{
		store:    store,
		service:  service,
		log:      logging.OrNop(log).Named("backup"),
		validate: newValidator(),
		now:      time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report field paths with their snapshot keys.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return model.ValidDate(fl.Field().String())
	})
	return v
}

// Export reads every summary with its tasks and every project.
func (b *Bridge) Export(ctx context.Context) (model.BackupData, error) {
	summaries, err := b.service.GetAllDailyTasks(ctx)
	if err != nil {
		return model.BackupData{}, err
	}
	projects, err := b.service.GetAllProjects(ctx)
	if err != nil {
		return model.BackupData{}, err
	}
	data := model.BackupData{
		DailyTasks: summaries,
		Projects:   projects,
		Version:    SnapshotVersion,
		Timestamp:  b.now().UTC().Format(time.RFC3339),
	}
	b.log.Info("snapshot exported",
		zap.Int("entries", len(summaries)), zap.Int("projects", len(projects)))
	return data, nil
}

// Import replaces the content of all three collections with data. Nothing is
// written unless data validates, and the clear and repopulate run in a single
// transaction. Every failure is an *ImportError.
func (b *Bridge) Import(ctx context.Context, data model.BackupData) error {
	if err := b.Validate(data); err != nil {
		return err
	}

	tasks := 0
	err := b.store.WithTx(ctx, func(tx *storage.Tx) error {
		for _, c := range []storage.Collection{storage.Tasks, storage.DailyTasks, storage.Projects} {
			if err := storage.Clear(ctx, tx, c); err != nil {
				return err
			}
		}
		for _, p := range data.Projects {
			if err := storage.Put(ctx, tx, storage.Projects, p); err != nil {
				return err
			}
		}
		for _, dt := range data.DailyTasks {
			summary := dt
			summary.Tasks = nil
			if summary.Projects == nil {
				summary.Projects = []model.Project{}
			}
			if err := storage.Put(ctx, tx, storage.DailyTasks, summary); err != nil {
				return err
			}
			for _, t := range dt.Tasks {
				if t.Date == "" {
					t.Date = dt.Date
				}
				if err := storage.Put(ctx, tx, storage.Tasks, t); err != nil {
					return err
				}
				tasks++
			}
		}
		return nil
	})
	if err != nil {
		b.log.Error("import rolled back", zap.Error(err))
		return importFailed(err)
	}
	b.log.Info("snapshot imported",
		zap.Int("entries", len(data.DailyTasks)),
		zap.Int("projects", len(data.Projects)),
		zap.Int("tasks", tasks))
	return nil
}

// Validate checks a snapshot without touching the store.
func (b *Bridge) Validate(data model.BackupData) error {
	if data.Version != "" && data.Version != SnapshotVersion {
		return importFailed(fmt.Errorf("unsupported snapshot version %q", data.Version))
	}
	if err := b.validate.Struct(data); err != nil {
		return importFailed(err)
	}
	dates := make(map[string]string, len(data.DailyTasks))
	for _, dt := range data.DailyTasks {
		if other, ok := dates[dt.Date]; ok && other != dt.ID {
			return importFailed(fmt.Errorf("entries %s and %s share date %s", other, dt.ID, dt.Date))
		}
		dates[dt.Date] = dt.ID
	}
	return nil
}
