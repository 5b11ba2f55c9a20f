package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type userRecord struct {
	ID          string `gorm:"primaryKey;type:text"`
	Email       string `gorm:"size:320"`
	DisplayName string `gorm:"size:120"`
	Picture     string `gorm:"type:text"`
}

func (userRecord) TableName() string { return "users" }

type spaceRecord struct {
	ID       string              `gorm:"primaryKey;type:text"`
	Name     string              `gorm:"type:text"`
	OwnerID  string              `gorm:"type:text;index"`
	IsPublic bool                `gorm:"not null;default:false"`
	Members  []spaceMemberRecord `gorm:"foreignKey:SpaceID"`
}

func (spaceRecord) TableName() string { return "spaces" }

type spaceMemberRecord struct {
	SpaceID string `gorm:"primaryKey;type:text"`
	UserID  string `gorm:"primaryKey;type:text"`
}

func (spaceMemberRecord) TableName() string { return "space_members" }

// Postgres reads users and spaces from the document store's relational
// mirror. Queries are read-only.
type Postgres struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

var _ Directory = (*Postgres)(nil)

// OpenPostgres connects with pgx, forcing IPv4 dials, and wraps the pool in gorm.
func OpenPostgres(ctx context.Context, dsn string, log *slog.Logger) (*Postgres, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		d := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
		return d.DialContext(ctx, "tcp4", addr)
	}

	sqlDB := stdlib.OpenDB(*cfg)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	gLogger := logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             1500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gLogger})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return &Postgres{db: db, sqlDB: sqlDB}, nil
}

func (p *Postgres) FindUser(ctx context.Context, userID string) (*User, error) {
	var rec userRecord
	err := p.db.WithContext(ctx).First(&rec, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user '%s': %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user '%s': %w", userID, err)
	}
	return rec.toUser(), nil
}

func (p *Postgres) FindSpace(ctx context.Context, spaceID string) (*Space, error) {
	var rec spaceRecord
	err := p.db.WithContext(ctx).Preload("Members").First(&rec, "id = ?", spaceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("space '%s': %w", spaceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query space '%s': %w", spaceID, err)
	}
	return rec.toSpace(), nil
}

func (p *Postgres) Close() error {
	return p.sqlDB.Close()
}

func (r *userRecord) toUser() *User {
	return &User{ID: r.ID, Name: r.DisplayName, Email: r.Email, Picture: r.Picture}
}

func (r *spaceRecord) toSpace() *Space {
	members := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		members = append(members, m.UserID)
	}
	return &Space{ID: r.ID, Name: r.Name, OwnerID: r.OwnerID, Members: members, IsPublic: r.IsPublic}
}
