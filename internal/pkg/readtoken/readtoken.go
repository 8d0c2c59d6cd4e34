package readtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrMalformed = errors.New("malformed token")
	ErrBadSign   = errors.New("bad signature")
	ErrExpired   = errors.New("token expired")
	ErrPurpose   = errors.New("unexpected token purpose")
)

// 令牌用途。签名覆盖 purpose，防止一类令牌被重放为另一类
const (
	PurposeRead        = "read"
	PurposeEmailChange = "email_change"
)

// Payload 无状态能力令牌的载荷
// 格式：base64url(payload JSON) + "." + base64url(HMAC-SHA256(payload JSON))
// 签名只覆盖载荷字节本身
type Payload struct {
	UserID     int64  `json:"uid"`
	DateKey    string `json:"date_key,omitempty"`
	DeliveryID int64  `json:"delivery_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Purpose    string `json:"purpose"`
	ExpiresAt  int64  `json:"exp"`
}

// Sign 生成签名令牌
func Sign(p *Payload, secret string) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sig := mac(raw, secret)
	return base64.RawURLEncoding.EncodeToString(raw) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify 校验令牌并返回载荷
// 长度不一致先于比较拒绝，签名比较使用常数时间
func Verify(token, secret, wantPurpose string, now time.Time) (*Payload, error) {
	part1, part2, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrMalformed
	}

	raw, err := base64.RawURLEncoding.DecodeString(part1)
	if err != nil {
		return nil, ErrMalformed
	}
	gotSig, err := base64.RawURLEncoding.DecodeString(part2)
	if err != nil {
		return nil, ErrMalformed
	}

	wantSig := mac(raw, secret)
	if len(gotSig) != len(wantSig) {
		return nil, ErrBadSign
	}
	if subtle.ConstantTimeCompare(gotSig, wantSig) != 1 {
		return nil, ErrBadSign
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrMalformed
	}
	if p.Purpose != wantPurpose {
		return nil, ErrPurpose
	}
	if now.Unix() >= p.ExpiresAt {
		return nil, ErrExpired
	}
	return &p, nil
}

func mac(data []byte, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return h.Sum(nil)
}
