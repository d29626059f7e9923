package util

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
)

// EncodeSHA256 对字符串进行SHA-256编码
// str: 待编码的字符串
// 返回值: SHA-256编码后的64位十六进制字符串
func EncodeSHA256(str string) string {
	h := sha256.New()
	h.Write([]byte(str))
	return hex.EncodeToString(h.Sum(nil))
}

// SHA256Reader computes the SHA-256 digest of everything read from r
// SHA256Reader 计算读取内容的SHA-256摘要
func SHA256Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA256Writer tees everything written through it into a SHA-256 hash
// SHA256Writer 将写入的数据同时计入SHA-256哈希
type SHA256Writer struct {
	w io.Writer
	h hash.Hash
}

func NewSHA256Writer(w io.Writer) *SHA256Writer {
	return &SHA256Writer{w: w, h: sha256.New()}
}

func (s *SHA256Writer) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if n > 0 {
		s.h.Write(p[:n])
	}
	return n, err
}

// Sum returns the hex digest of everything written so far
// Sum 返回已写入内容的十六进制摘要
func (s *SHA256Writer) Sum() string {
	return hex.EncodeToString(s.h.Sum(nil))
}

// SHA256File computes the SHA-256 digest of a file on disk
// SHA256File 计算磁盘文件的SHA-256摘要
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return SHA256Reader(f)
}
