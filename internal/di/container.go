// Package di wires the site content runtime from a runtimeconfig.Config.
package di

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	repocache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	storageadapter "github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/adapters/storage"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/auth"
	contentcmd "github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/commands/content"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/extract"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/fields"
	sitehttp "github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/http"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/legacy"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/localstore"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging/console"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/logging/gologger"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/markdown"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/migrations"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/runtimeconfig"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/sections"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/activity/usersink"
	"github.com/waliasolutions/mindful-mindset-coaching-sub001/pkg/interfaces"
)

// ErrMigrationsRequired is returned when a database backend is configured
// without a migrations filesystem and no pre-migrated *bun.DB was supplied.
var ErrMigrationsRequired = errors.New("di: migrations filesystem required for database backends")

// Container owns every runtime component built from the configuration.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider
	logger         interfaces.Logger

	bunDB        *bun.DB
	ownsDB       bool
	skipMigrate  bool
	migrationsFS fs.FS

	redisClient *redis.Client
	ownsRedis   bool

	cacheService  repocache.CacheService
	keySerializer repocache.KeySerializer

	defaultsFS fs.FS
	extractor  extract.Extractor
	activity   interfaces.ActivitySink
	clock      func() time.Time

	area      *localstore.Area
	local     *localstore.Store
	sections  *sections.Store
	migrator  *legacy.Migrator
	report    legacy.Report
	fieldRepo fields.Repository
	fieldSvc  fields.Service
	verifier  *auth.Verifier
	api       *sitehttp.API
	commands  contentcmd.Handlers
	renderer  *markdown.Renderer
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithBunDB supplies an already opened database. The container does not close it.
func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithoutMigrations skips schema migration for a supplied database.
func WithoutMigrations() Option {
	return func(c *Container) {
		c.skipMigrate = true
	}
}

// WithMigrations sets the filesystem holding data/sql/migrations.
func WithMigrations(fsys fs.FS) Option {
	return func(c *Container) {
		c.migrationsFS = fsys
	}
}

// WithRedisClient supplies the client used by the redis local backend.
func WithRedisClient(client *redis.Client) Option {
	return func(c *Container) {
		c.redisClient = client
	}
}

// WithLoggerProvider overrides the provider selected from Config.Logging.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithCache overrides the default cache service used by the bun repository.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// WithDefaultsFS seeds section defaults from fsys instead of Content.DefaultsDir on disk.
func WithDefaultsFS(fsys fs.FS) Option {
	return func(c *Container) {
		c.defaultsFS = fsys
	}
}

// WithExtractor sets the extractor merged over defaults for sections with no
// persisted override.
func WithExtractor(extractor extract.Extractor) Option {
	return func(c *Container) {
		c.extractor = extractor
	}
}

// WithActivitySink receives one record per content save.
func WithActivitySink(sink interfaces.ActivitySink) Option {
	return func(c *Container) {
		c.activity = sink
	}
}

// WithFieldRepository overrides the repository selected by Storage.Remote.
func WithFieldRepository(repo fields.Repository) Option {
	return func(c *Container) {
		c.fieldRepo = repo
	}
}

// WithMarkdownRenderer overrides the renderer used for rich_text fields.
func WithMarkdownRenderer(renderer *markdown.Renderer) Option {
	return func(c *Container) {
		c.renderer = renderer
	}
}

// WithClock overrides the clock used by the field service and token verifier.
func WithClock(clock func() time.Time) Option {
	return func(c *Container) {
		c.clock = clock
	}
}

// NewContainer validates cfg and builds the runtime.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{Config: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	steps := []func(context.Context) error{
		c.configureLogging,
		c.configureDatabase,
		c.configureLocalStore,
		c.configureSections,
		c.configureFields,
		c.configureAuth,
	}
	ctx := context.Background()
	for _, step := range steps {
		if err := step(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}
	c.configureSurface()
	return c, nil
}

func (c *Container) configureLogging(context.Context) error {
	if c.loggerProvider == nil && c.Config.Features.Logger {
		switch strings.ToLower(strings.TrimSpace(c.Config.Logging.Provider)) {
		case "gologger":
			provider, err := gologger.NewProvider(gologger.Config{
				Level:     c.Config.Logging.Level,
				Format:    c.Config.Logging.Format,
				AddSource: c.Config.Logging.AddSource,
				Focus:     c.Config.Logging.Focus,
			})
			if err != nil {
				return err
			}
			c.loggerProvider = provider
		default:
			c.loggerProvider = console.NewProvider(console.Options{
				MinLevel: console.ParseLevel(c.Config.Logging.Level),
			})
		}
	}
	c.logger = logging.ModuleLogger(c.loggerProvider, "sitecontent")
	if c.activity == nil && c.loggerProvider != nil {
		c.activity = usersink.LogSink{Logger: logging.FieldsLogger(c.loggerProvider)}
	}
	return nil
}

func (c *Container) usesDatabase() bool {
	return strings.EqualFold(c.Config.Storage.Local, "sql") || strings.EqualFold(c.Config.Storage.Remote, "bun")
}

func (c *Container) configureDatabase(ctx context.Context) error {
	if !c.usesDatabase() {
		return nil
	}
	if c.bunDB == nil {
		db, err := OpenDatabase(c.Config.Storage.Driver, c.Config.Storage.DSN)
		if err != nil {
			return err
		}
		c.bunDB = db
		c.ownsDB = true
	}
	if c.skipMigrate {
		return nil
	}
	if c.migrationsFS == nil {
		return ErrMigrationsRequired
	}
	runner := migrations.NewRunner(c.bunDB, c.migrationsFS, migrations.WithLogger(logging.WithFields(c.logger, map[string]any{"component": "migrations"})))
	_, err := runner.Up(ctx)
	return err
}

// OpenDatabase opens a bun handle for driver ("sqlite" or "postgres").
func OpenDatabase(driver, dsn string) (*bun.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		sqlDB, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("di: open sqlite: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		return bun.NewDB(sqlDB, sqlitedialect.New()), nil
	case "postgres":
		sqlDB, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("di: open postgres: %w", err)
		}
		return bun.NewDB(sqlDB, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("%w: %s", runtimeconfig.ErrDriverUnknown, driver)
	}
}

func (c *Container) configureLocalStore(ctx context.Context) error {
	areaName := strings.TrimSpace(c.Config.Storage.Area)
	areaOpts := []localstore.AreaOption{
		localstore.WithLogger(logging.LocalStoreLogger(c.loggerProvider)),
	}

	var backend localstore.Backend
	switch strings.ToLower(strings.TrimSpace(c.Config.Storage.Local)) {
	case "sql":
		backend = localstore.NewSQLBackend(storageadapter.NewSQLAdapter(c.bunDB), areaName)
	case "redis":
		if c.redisClient == nil {
			c.redisClient = redis.NewClient(&redis.Options{
				Addr:     c.Config.Redis.Addr,
				Password: c.Config.Redis.Password,
				DB:       c.Config.Redis.DB,
			})
			c.ownsRedis = true
		}
		backend = localstore.NewRedisBackend(c.redisClient, areaName)
		areaOpts = append(areaOpts, localstore.WithNotifier(localstore.NewRedisNotifier(c.redisClient, areaName)))
	default:
		backend = localstore.NewMemoryBackend(c.Config.Content.Quota)
	}

	c.area = localstore.NewArea(backend, areaOpts...)
	if err := c.area.Start(ctx); err != nil {
		return fmt.Errorf("di: start local area: %w", err)
	}
	c.local = c.area.Open("server")
	return nil
}

func (c *Container) configureSections(context.Context) error {
	c.migrator = legacy.NewMigrator(c.local, legacy.WithLogger(logging.LegacyLogger(c.loggerProvider)))
	if c.Config.Content.MigrateLegacy {
		report, err := c.migrator.Migrate()
		if err != nil {
			// Legacy keys are left in place on failure, so startup continues.
			c.logger.Warn("legacy.migrate.failed", "error", err)
		}
		c.report = report
	}

	storeOpts := []sections.Option{sections.WithLogger(logging.SectionsLogger(c.loggerProvider))}
	if c.extractor != nil {
		storeOpts = append(storeOpts, sections.WithExtractor(c.extractor))
	}
	c.sections = sections.NewStore(c.local, storeOpts...)

	fsys, dir := c.defaultsFS, "."
	if fsys == nil && strings.TrimSpace(c.Config.Content.DefaultsDir) != "" {
		fsys = os.DirFS(c.Config.Content.DefaultsDir)
	}
	if fsys != nil {
		if err := c.sections.SeedDefaults(fsys, dir); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) configureFields(context.Context) error {
	if c.fieldRepo == nil {
		if strings.EqualFold(c.Config.Storage.Remote, "bun") {
			repoLogger := fields.WithRepositoryLogger(logging.FieldsLogger(c.loggerProvider))
			c.configureCacheDefaults()
			if c.cacheService != nil {
				c.fieldRepo = fields.NewBunRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer, repoLogger)
			} else {
				c.fieldRepo = fields.NewBunRepository(c.bunDB, repoLogger)
			}
		} else {
			c.fieldRepo = fields.NewMemoryRepository()
		}
	}

	serviceOpts := []fields.ServiceOption{
		fields.WithLogger(logging.FieldsLogger(c.loggerProvider)),
		fields.WithActorResolver(auth.ContextResolver{}),
		fields.WithHistoryLimit(c.Config.Content.HistoryLimit),
	}
	if c.activity != nil {
		serviceOpts = append(serviceOpts, fields.WithActivitySink(c.activity))
	}
	if c.Config.Content.DeterministicIDs {
		serviceOpts = append(serviceOpts, fields.WithDeterministicIDs())
	}
	if c.clock != nil {
		serviceOpts = append(serviceOpts, fields.WithClock(c.clock))
	}
	c.fieldSvc = fields.NewService(c.fieldRepo, serviceOpts...)
	return nil
}

func (c *Container) configureCacheDefaults() {
	if !c.Config.Cache.Enabled {
		return
	}
	if c.cacheService == nil {
		cfg := repocache.DefaultConfig()
		if c.Config.Cache.DefaultTTL > 0 {
			cfg.TTL = c.Config.Cache.DefaultTTL
		}
		service, err := repocache.NewCacheService(cfg)
		if err != nil {
			c.logger.Warn("cache.init.failed", "error", err)
			return
		}
		c.cacheService = service
	}
	if c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}
}

func (c *Container) configureAuth(context.Context) error {
	if !c.Config.Features.Auth {
		return nil
	}
	verifierOpts := []auth.VerifierOption{auth.WithLogger(logging.HTTPLogger(c.loggerProvider))}
	if c.clock != nil {
		verifierOpts = append(verifierOpts, auth.WithClock(c.clock))
	}
	verifier, err := auth.NewVerifier(c.Config.Auth.Secret, c.Config.Auth.Issuer, verifierOpts...)
	if err != nil {
		return err
	}
	c.verifier = verifier
	return nil
}

func (c *Container) configureSurface() {
	if c.renderer == nil {
		c.renderer = markdown.NewRenderer(markdown.Options{})
	}
	c.api = sitehttp.NewAPI(
		sitehttp.WithBasePath(c.Config.HTTP.BasePath),
		sitehttp.WithSectionStore(c.sections),
		sitehttp.WithFieldService(c.fieldSvc),
		sitehttp.WithLogger(logging.HTTPLogger(c.loggerProvider)),
		sitehttp.WithAllowedOrigins(c.Config.HTTP.AllowedOrigins),
		sitehttp.WithEventStream(c.Config.Features.EventStream),
	)

	commandLogger := logging.CommandsLogger(c.loggerProvider)
	c.commands = contentcmd.Handlers{
		Save:          contentcmd.NewSaveContentHandler(c.fieldSvc, commandLogger),
		Restore:       contentcmd.NewRestoreVersionHandler(c.fieldSvc, commandLogger),
		MigrateLegacy: contentcmd.NewMigrateLegacyHandler(c.migrator, commandLogger),
		SetSection:    contentcmd.NewSetSectionHandler(c.sections, commandLogger),
		DeleteSection: contentcmd.NewDeleteSectionHandler(c.sections, commandLogger),
	}
}

// Handler returns the HTTP surface, wrapped in bearer token verification
// when auth is enabled.
func (c *Container) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	if err := c.api.Register(mux); err != nil {
		return nil, err
	}
	if c.verifier != nil {
		return c.verifier.Middleware(mux), nil
	}
	return mux, nil
}

// Close releases the listeners and connections the container opened.
func (c *Container) Close() {
	if c.sections != nil {
		c.sections.Close()
	}
	if c.local != nil {
		c.local.Close()
	}
	if c.area != nil {
		c.area.Close()
	}
	if c.ownsRedis && c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil && c.logger != nil {
			c.logger.Warn("redis.close.failed", "error", err)
		}
	}
	if c.ownsDB && c.bunDB != nil {
		if err := c.bunDB.Close(); err != nil && c.logger != nil {
			c.logger.Warn("database.close.failed", "error", err)
		}
	}
}

func (c *Container) Logger() interfaces.Logger                 { return c.logger }
func (c *Container) LoggerProvider() interfaces.LoggerProvider { return c.loggerProvider }
func (c *Container) BunDB() *bun.DB                            { return c.bunDB }
func (c *Container) Area() *localstore.Area                    { return c.area }
func (c *Container) LocalStore() *localstore.Store             { return c.local }
func (c *Container) SectionStore() *sections.Store             { return c.sections }
func (c *Container) FieldService() fields.Service              { return c.fieldSvc }
func (c *Container) FieldRepository() fields.Repository        { return c.fieldRepo }
func (c *Container) LegacyMigrator() *legacy.Migrator          { return c.migrator }
func (c *Container) MigrationReport() legacy.Report            { return c.report }
func (c *Container) Verifier() *auth.Verifier                  { return c.verifier }
func (c *Container) API() *sitehttp.API                        { return c.api }
func (c *Container) Commands() contentcmd.Handlers             { return c.commands }
func (c *Container) MarkdownRenderer() *markdown.Renderer      { return c.renderer }
