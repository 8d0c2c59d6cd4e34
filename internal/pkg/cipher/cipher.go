package cipher

import (
	"errors"
)

// 法务页联系方式的轻量混淆：循环 XOR 后按 16 字符自定义字母表替换编码
// 只为阻挡爬虫抓取明文，不是安全边界

var (
	ErrBadAlphabet = errors.New("alphabet must be 16 unique characters")
	ErrBadChar     = errors.New("character not in alphabet")
	ErrOddLength   = errors.New("encoded string has odd length")
	ErrEmptyKey    = errors.New("empty cipher key")
)

type Codec struct {
	key      []byte
	alphabet []byte
	index    map[byte]int
}

func New(key, alphabet string) (*Codec, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if len(alphabet) != 16 {
		return nil, ErrBadAlphabet
	}
	index := make(map[byte]int, 16)
	for i := 0; i < 16; i++ {
		if _, dup := index[alphabet[i]]; dup {
			return nil, ErrBadAlphabet
		}
		index[alphabet[i]] = i
	}
	return &Codec{key: []byte(key), alphabet: []byte(alphabet), index: index}, nil
}

// Decode 将混淆串还原为明文
func (c *Codec) Decode(encoded string) (string, error) {
	if len(encoded)%2 != 0 {
		return "", ErrOddLength
	}
	out := make([]byte, len(encoded)/2)
	for i := 0; i < len(out); i++ {
		hi, ok := c.index[encoded[2*i]]
		if !ok {
			return "", ErrBadChar
		}
		lo, ok := c.index[encoded[2*i+1]]
		if !ok {
			return "", ErrBadChar
		}
		out[i] = byte(hi<<4|lo) ^ c.key[i%len(c.key)]
	}
	return string(out), nil
}

// Encode 生成混淆串（维护法务页数据时使用）
func (c *Codec) Encode(plain string) string {
	out := make([]byte, 0, len(plain)*2)
	for i := 0; i < len(plain); i++ {
		b := plain[i] ^ c.key[i%len(c.key)]
		out = append(out, c.alphabet[b>>4], c.alphabet[b&0x0f])
	}
	return string(out)
}
