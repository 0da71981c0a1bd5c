package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/domain/input"
	"github.com/qrave1/MentorCall/internal/domain/models"
	"github.com/qrave1/MentorCall/internal/domain/output"
	"github.com/qrave1/MentorCall/internal/infra/adapters/memory"
	"github.com/qrave1/MentorCall/internal/infra/adapters/postgres/repository"
	"github.com/qrave1/MentorCall/internal/infra/appctx"
)

const tokenTTL = 72 * time.Hour

// UserUsecase определяет интерфейс для работы с пользователями
type UserUsecase interface {
	// Создание пользователя
	CreateUser(ctx context.Context, in *input.RegisterUserInput) (*models.User, error)

	// Получение пользователей из БД
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// Аутентификация
	ValidateCredentials(ctx context.Context, username, password string) (*models.User, error)
	GenerateJWT(user *models.User) (string, error)

	// Онлайн пользователи
	GetOnlineUsers(ctx context.Context) ([]output.OnlineUserInfo, error)
}

type userUsecase struct {
	jwtSecret []byte

	userRepo      repository.UserRepository
	developerRepo repository.DeveloperRepository
	wsRepo        memory.WebsocketConnectionRepository
}

// NewUserUsecase создает новый экземпляр UserUsecase
func NewUserUsecase(
	jwtSecret []byte,
	userRepo repository.UserRepository,
	developerRepo repository.DeveloperRepository,
	wsRepo memory.WebsocketConnectionRepository,
) UserUsecase {
	return &userUsecase{
		jwtSecret:     jwtSecret,
		userRepo:      userRepo,
		developerRepo: developerRepo,
		wsRepo:        wsRepo,
	}
}

// CreateUser создает нового пользователя с хешированным паролем.
// Разработчику сразу заводится пустой профиль без рабочих часов.
func (uc *userUsecase) CreateUser(ctx context.Context, in *input.RegisterUserInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, fmt.Errorf("username and password are required: %w", apperr.ErrInvalidInput)
	}

	role := in.Role
	if role == "" {
		role = models.RoleStudent
	}

	if !role.Valid() {
		return nil, fmt.Errorf("role %q: %w", role, apperr.ErrInvalidInput)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.NewUser(username, strings.TrimSpace(in.DisplayName), role)
	user.Password = string(hashedPassword)

	if err = uc.userRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if role == models.RoleDeveloper {
		profile := &models.DeveloperProfile{UserID: user.ID, UpdatedAt: time.Now()}

		if err = uc.developerRepo.UpsertProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("create developer profile: %w", err)
		}
	}

	// Убираем пароль из ответа
	user.Password = ""
	return user, nil
}

// GetUserByID получает пользователя по ID
func (uc *userUsecase) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return uc.userRepo.GetUserByID(ctx, id)
}

// ValidateCredentials проверяет учетные данные пользователя
func (uc *userUsecase) ValidateCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := uc.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, err
	}

	user.Password = ""
	return user, nil
}

// GenerateJWT генерирует JWT токен для пользователя
func (uc *userUsecase) GenerateJWT(user *models.User) (string, error) {
	claims := &appctx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		},
		Role: user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(uc.jwtSecret)
}

// GetOnlineUsers получает список всех онлайн пользователей
func (uc *userUsecase) GetOnlineUsers(ctx context.Context) ([]output.OnlineUserInfo, error) {
	connectedUserIDs := uc.wsRepo.GetAllConnected()

	result := make([]output.OnlineUserInfo, 0, len(connectedUserIDs))

	for _, userID := range connectedUserIDs {
		user, err := uc.userRepo.GetUserByID(ctx, userID)
		if err != nil {
			continue // Пропускаем пользователей, которых не можем найти
		}

		result = append(result, output.OnlineUserInfo{
			ID:          user.ID.String(),
			Username:    user.Username,
			DisplayName: user.DisplayName,
			Role:        string(user.Role),
		})
	}

	return result, nil
}
