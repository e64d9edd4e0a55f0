package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// RoomTokenService 负责签发和校验房间令牌。
// 令牌在 /verify 成功后签发，用于在无状态的校验请求和随后的
// 有状态页面加载之间建立桥梁。过期时间由 JWT 的 exp 声明承载，
// 因此不需要服务端的令牌表或定期清扫。
type RoomTokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewRoomTokenService 创建 RoomTokenService 实例。
func NewRoomTokenService(secretKey string, ttl time.Duration) (*RoomTokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("room token secret key cannot be empty")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute // 与原始实现的 TOKEN_TTL 一致
	}
	return &RoomTokenService{secret: []byte(secretKey), ttl: ttl}, nil
}

// TTL 返回令牌的有效期，供 handler 设置 cookie 的 Max-Age。
func (s *RoomTokenService) TTL() time.Duration {
	return s.ttl
}

// Issue 为指定房间签发一个短期令牌。
func (s *RoomTokenService) Issue(roomNum string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"room": roomNum,
		"exp":  time.Now().Add(s.ttl).Unix(),
		"iat":  time.Now().Unix(),
	})
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign room token: %w", err)
	}
	return tokenString, nil
}

// Validate 解析并校验令牌，返回其绑定的房间号。
func (s *RoomTokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// 只接受 HMAC 签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		logrus.WithError(err).Debug("Room token validation failed")
		return "", ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrTokenInvalid
	}
	room, ok := claims["room"].(string)
	if !ok || room == "" {
		return "", ErrTokenInvalid
	}
	return room, nil
}
