// Package store 管理磁盘上的加密记录队列。
//
// 目录结构:
//
//	profiles/
//	  profiles.json        整批原始响应
//	  <iccid>.json         单条记录，待使用
//	  __<iccid>.json       已使用
//
// 不做跨进程加锁，同一目录只应有一个使用者。
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/iniwex5/simprofile/pkg/logger"
	"github.com/iniwex5/simprofile/pkg/sim"
)

const (
	BatchFile  = "profiles.json"
	UsedPrefix = "__"
	batchStem  = "profiles"
)

var (
	ErrNoProfiles = errors.New("no unused profiles found")
	ErrExists     = errors.New("batch file already exists")
	ErrNoICCID    = errors.New("record has no usable iccid")
)

// Dir 记录目录
type Dir struct {
	Root string
}

func New(root string) *Dir {
	return &Dir{Root: root}
}

// Entry 队列中的一条记录
type Entry struct {
	Name string
	Path string
}

// Next 返回按文件名排序后的第一条未使用记录
func (d *Dir) Next() (Entry, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return Entry{}, fmt.Errorf("read profile dir %s: %w", d.Root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !isPending(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		logger.Debug("profile queue empty", logger.String("dir", d.Root))
		return Entry{}, fmt.Errorf("%w at %s", ErrNoProfiles, d.Root)
	}
	sort.Strings(names)
	return Entry{Name: names[0], Path: filepath.Join(d.Root, names[0])}, nil
}

// Pending 返回未使用记录的数量
func (d *Dir) Pending() (int, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() && isPending(e.Name()) {
			n++
		}
	}
	return n, nil
}

// Read 解析一条加密记录文件
func Read(path string) (sim.EncryptedProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sim.EncryptedProfile{}, err
	}
	var ep sim.EncryptedProfile
	if err := json.Unmarshal(data, &ep); err != nil {
		return sim.EncryptedProfile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return ep, nil
}

// ReadBatch 解析单个对象或对象数组
func ReadBatch(path string) ([]sim.EncryptedProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var eps []sim.EncryptedProfile
	if err := json.Unmarshal(data, &eps); err == nil {
		return eps, nil
	}
	var ep sim.EncryptedProfile
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return []sim.EncryptedProfile{ep}, nil
}

// MarkUsed 重命名为 __ 前缀
func (d *Dir) MarkUsed(e Entry) error {
	to := filepath.Join(filepath.Dir(e.Path), UsedPrefix+e.Name)
	if err := os.Rename(e.Path, to); err != nil {
		return fmt.Errorf("mark %s used: %w", e.Name, err)
	}
	logger.Debug("profile marked used", logger.String("from", e.Path), logger.String("to", to))
	return nil
}

// Create 创建目录和批量文件，文件已存在时拒绝覆盖
func (d *Dir) Create() (*os.File, error) {
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(d.Root, BatchFile)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w at %s, refusing to overwrite", ErrExists, path)
		}
		return nil, err
	}
	return f, nil
}

// Discard 删除批量文件 (拉取失败时回滚)
func (d *Dir) Discard() error {
	return os.Remove(filepath.Join(d.Root, BatchFile))
}

// WriteBatch 写入整批文件和每条记录文件
// Create 必须先成功；单条写入失败不会中断其余记录
func (d *Dir) WriteBatch(f *os.File, eps []sim.EncryptedProfile) error {
	data, err := json.Marshal(eps)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	var errs error
	for _, ep := range eps {
		errs = multierr.Append(errs, d.writeRecord(ep))
	}
	logger.Info("profiles stored", logger.String("dir", d.Root), logger.Int("count", len(eps)))
	return errs
}

func (d *Dir) writeRecord(ep sim.EncryptedProfile) error {
	if ep.ICCID == "" || strings.ContainsAny(ep.ICCID, `/\`) {
		return fmt.Errorf("%w: %q", ErrNoICCID, ep.ICCID)
	}
	data, err := json.Marshal(ep)
	if err != nil {
		return err
	}
	path := filepath.Join(d.Root, ep.ICCID+".json")
	logger.Debug("storing profile", logger.String("iccid", ep.ICCID), logger.String("path", path))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func isPending(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return !strings.HasPrefix(stem, UsedPrefix) && !strings.HasPrefix(stem, batchStem)
}
