package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"

	"forumhub/internal/config"
	"forumhub/internal/model"
	"forumhub/internal/repository"
	"forumhub/internal/util"

	"github.com/go-faker/faker/v4"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Every seeded account uses this password.
const seedPassword = "password"

var seedTags = []string{"general", "golang", "databases", "devops", "frontend", "career", "help"}

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "seeder",
		Usage: "Fill the database with demo users, discussions and threaded comments",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "users",
				Aliases: []string{"u"},
				Value:   20,
				Usage:   "Number of users to create",
			},
			&cli.IntFlag{
				Name:    "discussions",
				Aliases: []string{"d"},
				Value:   30,
				Usage:   "Number of discussions to create",
			},
			&cli.IntFlag{
				Name:    "comments",
				Aliases: []string{"c"},
				Value:   20,
				Usage:   "Number of comments per discussion",
			},
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Drop and recreate all tables first",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := util.InitLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{TranslateError: true})
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			s := &seeder{
				db:          db,
				logger:      logger,
				users:       repository.NewUserRepository(db),
				roles:       repository.NewRoleRepository(db),
				discussions: repository.NewDiscussionRepository(db, nil),
				comments:    repository.NewCommentRepository(db),
			}
			return s.seed(ctx, c.Bool("reset"), int(c.Int("users")), int(c.Int("discussions")), int(c.Int("comments")))
		},
	}

	return app.Run(context.Background(), os.Args)
}

type seeder struct {
	db          *gorm.DB
	logger      *zap.Logger
	users       repository.UserRepository
	roles       repository.RoleRepository
	discussions repository.DiscussionRepository
	comments    repository.CommentRepository
}

func allModels() []interface{} {
	return []interface{}{
		&model.Role{}, &model.User{}, &model.Profile{}, &model.Discussion{}, &model.Comment{},
		&model.Reaction{}, &model.Report{}, &model.Notification{}, &model.AuditLog{},
	}
}

func (s *seeder) seed(ctx context.Context, reset bool, userCount, discussionCount, commentsPer int) error {
	if reset {
		s.logger.Info("dropping tables")
		if err := s.db.Migrator().DropTable(append(allModels(), "user_roles")...); err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}
	}
	if err := s.db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := s.roles.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}

	users, err := s.seedUsers(ctx, userCount)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		s.logger.Info("no users created, skipping discussions")
		return nil
	}

	for i := 0; i < discussionCount; i++ {
		discussion, err := s.seedDiscussion(ctx, users)
		if err != nil {
			return err
		}
		if err := s.seedComments(ctx, discussion, users, commentsPer); err != nil {
			return err
		}
	}

	s.logger.Info("seeding finished",
		zap.Int("users", len(users)),
		zap.Int("discussions", discussionCount),
		zap.Int("comments_per_discussion", commentsPer))
	return nil
}

// seedUsers creates one admin followed by regular users.
func (s *seeder) seedUsers(ctx context.Context, count int) ([]*model.User, error) {
	hash, err := util.HashPassword(seedPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	roles, err := s.roles.FindByNames(ctx, []string{model.RoleAdmin, model.RoleUser})
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	byName := make(map[string]model.Role, len(roles))
	for _, r := range roles {
		byName[r.Name] = r
	}

	users := make([]*model.User, 0, count)
	for i := 0; i < count; i++ {
		user := &model.User{
			Email:           fmt.Sprintf("%d.%s", i, faker.Email()),
			PasswordHash:    hash,
			FirstName:       faker.FirstName(),
			LastName:        faker.LastName(),
			IsEmailVerified: true,
		}
		role := model.RoleUser
		if i == 0 {
			user.Email = "admin@forumhub.local"
			role = model.RoleAdmin
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", user.Email, err)
		}
		if err := s.users.ReplaceRoles(ctx, user, []model.Role{byName[role]}); err != nil {
			return nil, fmt.Errorf("failed to assign role: %w", err)
		}
		users = append(users, user)
	}
	s.logger.Info("users created", zap.Int("count", len(users)), zap.String("admin", "admin@forumhub.local"))
	return users, nil
}

func (s *seeder) seedDiscussion(ctx context.Context, users []*model.User) (*model.Discussion, error) {
	content := faker.Paragraph()
	discussion := &model.Discussion{
		Title:       faker.Sentence(),
		Content:     content,
		ContentHTML: util.RenderMarkdown(content),
		AuthorID:    users[rand.Intn(len(users))].ID,
		IsPinned:    rand.Intn(10) == 0,
	}
	if err := discussion.SetTags([]string{seedTags[rand.Intn(len(seedTags))]}); err != nil {
		return nil, err
	}
	if err := s.discussions.Create(ctx, discussion); err != nil {
		return nil, fmt.Errorf("failed to create discussion: %w", err)
	}
	return discussion, nil
}

// seedComments makes roughly a third of the comments roots and hangs the rest
// under a random earlier comment, which yields trees several levels deep.
func (s *seeder) seedComments(ctx context.Context, discussion *model.Discussion, users []*model.User, count int) error {
	created := make([]*model.Comment, 0, count)
	for i := 0; i < count; i++ {
		comment := &model.Comment{
			DiscussionID: discussion.ID,
			AuthorID:     users[rand.Intn(len(users))].ID,
			Content:      faker.Sentence(),
		}
		if len(created) > 0 && rand.Intn(3) != 0 {
			parent := created[rand.Intn(len(created))]
			comment.ParentID = &parent.ID
		}
		if err := s.comments.Create(ctx, comment); err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}
		created = append(created, comment)
	}
	return nil
}
