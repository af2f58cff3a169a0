// blocklist.go — список одноразовых почтовых доменов для формы контакта.
// Встроенный список дополняется YAML-файлом, который перечитывается при
// изменении (fsnotify).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// DefaultBlockedDomains — встроенный список одноразовых доменов.
var DefaultBlockedDomains = []string{"tempmail.com", "throwaway.email", "10minutemail.com"}

// DomainChecker проверяет, заблокирован ли почтовый домен.
type DomainChecker interface {
	IsBlocked(domain string) bool
}

// blocklistFile — формат YAML-файла.
type blocklistFile struct {
	Domains []string `yaml:"domains"`
}

// Blocklist — потокобезопасный набор заблокированных доменов.
type Blocklist struct {
	mu      sync.RWMutex
	domains map[string]struct{}
	path    string
	logger  *slog.Logger

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewBlocklist создаёт список из встроенных доменов и файла path (если задан).
// Ошибка чтения файла при старте возвращается вызывающему.
func NewBlocklist(path string, logger *slog.Logger) (*Blocklist, error) {
	b := &Blocklist{
		path:   path,
		logger: logger.With(slog.String("component", "blocklist")),
	}
	b.set(DefaultBlockedDomains, nil)

	if path != "" {
		if err := b.Reload(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// IsBlocked сообщает, совпадает ли домен (или один из его родительских доменов)
// с элементом списка.
func (b *Blocklist) IsBlocked(domain string) bool {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))

	b.mu.RLock()
	defer b.mu.RUnlock()

	for d := domain; d != ""; {
		if _, ok := b.domains[d]; ok {
			return true
		}
		i := strings.IndexByte(d, '.')
		if i < 0 {
			break
		}
		d = d[i+1:]
	}
	return false
}

// Len возвращает количество доменов в списке.
func (b *Blocklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.domains)
}

// Reload перечитывает файл. При ошибке текущий список не меняется.
func (b *Blocklist) Reload() error {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return fmt.Errorf("чтение списка доменов %s: %w", b.path, err)
	}

	var f blocklistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("разбор списка доменов %s: %w", b.path, err)
	}

	b.set(DefaultBlockedDomains, f.Domains)
	b.logger.Info("Список одноразовых доменов загружен",
		slog.String("path", b.path),
		slog.Int("domains", b.Len()),
	)
	return nil
}

func (b *Blocklist) set(lists ...[]string) {
	domains := make(map[string]struct{})
	for _, list := range lists {
		for _, d := range list {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				domains[d] = struct{}{}
			}
		}
	}

	b.mu.Lock()
	b.domains = domains
	b.mu.Unlock()
}

// Watch запускает отслеживание изменений файла. Наблюдается каталог файла,
// так как редакторы часто заменяют файл целиком. Без файла — no-op.
func (b *Blocklist) Watch(ctx context.Context) error {
	if b.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("создание fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("отслеживание %s: %w", b.path, err)
	}

	b.watcher = watcher
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})

	go b.run(ctx)
	return nil
}

// Stop останавливает отслеживание и ждёт завершения горутины.
func (b *Blocklist) Stop() {
	if b.watcher == nil {
		return
	}
	close(b.stopCh)
	<-b.doneCh
	if err := b.watcher.Close(); err != nil {
		b.logger.Warn("Ошибка закрытия fsnotify watcher", slog.String("error", err.Error()))
	}
	b.watcher = nil
}

func (b *Blocklist) run(ctx context.Context) {
	defer close(b.doneCh)

	target := filepath.Clean(b.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if err := b.Reload(); err != nil {
				b.logger.Warn("Список доменов не перечитан, используется прежний",
					slog.String("error", err.Error()),
				)
			}
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.logger.Warn("Ошибка fsnotify", slog.String("error", err.Error()))
		}
	}
}
