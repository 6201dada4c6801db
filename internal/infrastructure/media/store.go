package media

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"fittrack/internal/config"
	"fittrack/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// URLPrefix 静态文件的路由前缀
const URLPrefix = "/uploads/"

var (
	ErrUnsupportedMime = errors.New("unsupported mime type")
	ErrTooLarge        = errors.New("file too large")
)

// Kind 媒体类别
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

var allowed = map[Kind]map[string]string{
	KindImage: {
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	},
	KindVideo: {
		"video/mp4":        ".mp4",
		"video/webm":       ".webm",
		"video/quicktime":  ".mov",
		"video/x-matroska": ".mkv",
	},
}

var subdirs = map[Kind]string{
	KindImage: "images",
	KindVideo: "videos",
}

// Stored 存储结果：Path 为相对上传目录的路径，URL 为对外地址
type Stored struct {
	Path string
	URL  string
}

// LocalStore 本地磁盘存储，文件名由 uuid 生成，不使用客户端文件名
type LocalStore struct {
	dir           string
	publicBaseURL string
	maxBytes      map[Kind]int64
	log           *logrus.Entry
}

func NewLocalStore(cfg config.MediaConfig, log *logger.Logger) (*LocalStore, error) {
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(cfg.UploadDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &LocalStore{
		dir:           cfg.UploadDir,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxBytes: map[Kind]int64{
			KindImage: cfg.MaxImageMB << 20,
			KindVideo: cfg.MaxVideoMB << 20,
		},
		log: log.Component("media"),
	}, nil
}

// Dir 上传根目录，用于静态文件服务
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save 校验类型和大小后写入磁盘
func (s *LocalStore) Save(kind Kind, fh *multipart.FileHeader) (*Stored, error) {
	ext, err := extensionFor(kind, fh.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	if limit := s.maxBytes[kind]; limit > 0 && fh.Size > limit {
		return nil, ErrTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	rel := path.Join(subdirs[kind], uuid.NewString()+ext)
	abs := filepath.Join(s.dir, filepath.FromSlash(rel))

	dst, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(abs)
		return nil, fmt.Errorf("write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(abs)
		return nil, fmt.Errorf("close file: %w", err)
	}

	return &Stored{Path: rel, URL: s.PublicURL(rel)}, nil
}

// PublicURL 相对路径转对外地址，未配置 public_base_url 时返回站内路径
func (s *LocalStore) PublicURL(rel string) string {
	return s.publicBaseURL + URLPrefix + rel
}

// Remove 删除本地文件；外部地址和已不存在的文件直接忽略
func (s *LocalStore) Remove(url string) {
	rel, ok := s.localPath(url)
	if !ok {
		return
	}
	abs := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.WithError(err).WithField("path", rel).Warn("remove media failed")
	}
}

// localPath 从 URL 中取出上传目录内的相对路径，越界路径视为非本地
func (s *LocalStore) localPath(url string) (string, bool) {
	rest := url
	if s.publicBaseURL != "" && strings.HasPrefix(rest, s.publicBaseURL) {
		rest = strings.TrimPrefix(rest, s.publicBaseURL)
	}
	if !strings.HasPrefix(rest, URLPrefix) {
		return "", false
	}

	rel := path.Clean(strings.TrimPrefix(rest, URLPrefix))
	if rel == "." || strings.HasPrefix(rel, "..") || path.IsAbs(rel) {
		return "", false
	}
	return rel, true
}

func extensionFor(kind Kind, contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", ErrUnsupportedMime
	}
	ext, ok := allowed[kind][strings.ToLower(mediaType)]
	if !ok {
		return "", ErrUnsupportedMime
	}
	return ext, nil
}
