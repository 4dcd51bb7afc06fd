package services

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/parleychat/parley/internal/models"
	"github.com/parleychat/parley/internal/repositories"
	"github.com/parleychat/parley/internal/utils"
	jwtmw "github.com/parleychat/parley/middleware/jwt"
	logger "github.com/parleychat/parley/middleware/log"
)

// AuthService 认证服务
type AuthService struct {
	userRepo *repositories.UserRepository
	tokens   *jwtmw.TokenManager
	logger   *logger.Logger
}

// NewAuthService 创建认证服务实例
func NewAuthService(userRepo *repositories.UserRepository, tokens *jwtmw.TokenManager, log *logger.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		logger:   log,
	}
}

// SignUpRequest 注册请求
type SignUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	Token string   `json:"token"`
	User  *UserDTO `json:"user"`
}

// UserDTO 用户数据传输对象
type UserDTO struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SignUp 注册用户
func (s *AuthService) SignUp(req *SignUpRequest) (*AuthResponse, error) {
	if !utils.ValidateName(req.Name) {
		return nil, fmt.Errorf("%w: invalid name", ErrBadRequest)
	}
	if !utils.ValidateEmail(req.Email) {
		return nil, fmt.Errorf("%w: invalid email format", ErrBadRequest)
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, fmt.Errorf("%w: password too short", ErrBadRequest)
	}

	if _, err := s.userRepo.GetByEmail(req.Email); err == nil {
		return nil, ErrEmailTaken
	}

	hashPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hashPassword,
	}
	if err := s.userRepo.Create(user); err != nil {
		s.logger.Error("failed to create user", zap.String("email", req.Email), zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Name, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &AuthResponse{
		Token: token,
		User:  &UserDTO{ID: user.ID, Name: user.Name, Email: user.Email},
	}, nil
}

// Login 登录用户
func (s *AuthService) Login(req *LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Name, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &AuthResponse{
		Token: token,
		User:  &UserDTO{ID: user.ID, Name: user.Name, Email: user.Email},
	}, nil
}

// ListUsers 返回全部用户，供加人选择列表使用
func (s *AuthService) ListUsers() ([]UserDTO, error) {
	users, err := s.userRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	dtos := make([]UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, UserDTO{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	return dtos, nil
}
