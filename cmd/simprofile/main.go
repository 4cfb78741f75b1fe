package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/multierr"

	"github.com/iniwex5/simprofile/pkg/api"
	"github.com/iniwex5/simprofile/pkg/config"
	"github.com/iniwex5/simprofile/pkg/crypto"
	"github.com/iniwex5/simprofile/pkg/keystore"
	"github.com/iniwex5/simprofile/pkg/logger"
	"github.com/iniwex5/simprofile/pkg/pipeline"
	"github.com/iniwex5/simprofile/pkg/store"
	"github.com/iniwex5/simprofile/pkg/tlv"
)

// verbosity 可重复的 -v
type verbosity int

func (v *verbosity) String() string   { return strconv.Itoa(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }
func (v *verbosity) Set(s string) error {
	if s == "true" {
		*v++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*v = verbosity(n)
	return nil
}

const usage = `Usage: simprofile [-v] [-config FILE] <command> [flags]

Commands:
  fetch    fetch encrypted profiles from the API and store them on disk
  next     decrypt and encode the next unused profile, then mark it used
  decrypt  decrypt and encode profile files without marking them
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			logger.Error("exiting due to error", logger.Err(err))
		}
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("simprofile", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	var v verbosity
	global.Var(&v, "v", "verbosity (repeatable)")
	cfgPath := global.String("config", "", "YAML configuration file")
	if err := global.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if v > 0 {
		level = logger.LevelFromVerbosity(int(v))
	}
	logger.Init(logger.Options{Level: level, Format: cfg.Log.Format, Caller: v >= 3})

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return flag.ErrHelp
	}

	switch rest[0] {
	case "fetch":
		return runFetch(ctx, cfg, rest[1:])
	case "next":
		return runNext(cfg, rest[1:], stdout)
	case "decrypt":
		return runDecrypt(cfg, rest[1:], stdout)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func runFetch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.StringVar(&cfg.API.APIKey, "api-key", cfg.API.APIKey, "API key")
	count := fs.Int("count", 1, "number of profiles to fetch")
	fs.StringVar(&cfg.ProfilesDir, "out", cfg.ProfilesDir, "output directory")
	fs.StringVar(&cfg.API.Endpoint, "endpoint", cfg.API.Endpoint, "API endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.API.APIKey == "" {
		return errors.New("fetch: -api-key is required")
	}

	logger.Info("fetching profiles",
		logger.Int("count", *count),
		logger.String("endpoint", cfg.API.Endpoint),
		logger.String("dir", cfg.ProfilesDir))

	dir := store.New(cfg.ProfilesDir)
	// 先创建批量文件，已存在时尽早失败
	f, err := dir.Create()
	if err != nil {
		return err
	}

	profiles, err := api.NewClient(cfg.APIClientConfig()).Fetch(ctx, *count)
	if len(profiles) == 0 {
		f.Close()
		logger.Info("removing batch file", logger.String("dir", cfg.ProfilesDir))
		if rmErr := dir.Discard(); rmErr != nil {
			logger.Warn("failed to remove batch file", logger.Err(rmErr))
		}
		return err
	}
	if werr := dir.WriteBatch(f, profiles); werr != nil {
		return werr
	}
	// 部分成功时记录已保存，但仍以非零状态退出
	return err
}

type decodeFlags struct {
	key     string
	format  string
	padding string
	smsp    bool
	smsc    bool
}

func (d *decodeFlags) register(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&d.key, "key", cfg.Key, "path to private key")
	fs.StringVar(&d.format, "format", cfg.Format, "output format: hex, json or yaml")
	fs.StringVar(&d.padding, "padding", cfg.Padding, "RSA padding: pkcs1v15, oaep-sha1 or oaep-sha256")
	fs.BoolVar(&d.smsp, "smsp", cfg.IncludeSMSP, "include SMSP record")
	fs.BoolVar(&d.smsc, "smsc", cfg.IncludeSMSC, "include SMSC record")
}

func (d *decodeFlags) build() (*pipeline.Pipeline, error) {
	if d.key == "" {
		return nil, errors.New("-key is required")
	}
	format, err := pipeline.ParseFormat(d.format)
	if err != nil {
		return nil, err
	}
	padding, err := crypto.ParsePadding(d.padding)
	if err != nil {
		return nil, err
	}
	key, err := keystore.Load(d.key)
	if err != nil {
		return nil, err
	}
	logger.Debug("private key loaded", logger.String("path", key.Path), logger.String("format", key.Format.String()))

	dec := crypto.NewDecryptor(key, crypto.WithPadding(padding))
	logger.Debug("decoder ready",
		logger.String("padding", dec.Padding().String()),
		logger.String("output", string(format)),
		logger.Bool("smsp", d.smsp),
		logger.Bool("smsc", d.smsc))
	return pipeline.New(dec, tlv.Encoder{IncludeSMSP: d.smsp, IncludeSMSC: d.smsc}, format), nil
}

func runNext(cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("next", flag.ContinueOnError)
	var df decodeFlags
	df.register(fs, cfg)
	fs.StringVar(&cfg.ProfilesDir, "in", cfg.ProfilesDir, "directory of encrypted profiles")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := df.build()
	if err != nil {
		return err
	}

	dir := store.New(cfg.ProfilesDir)
	entry, err := dir.Next()
	if err != nil {
		return err
	}
	ep, err := store.Read(entry.Path)
	if err != nil {
		return err
	}
	out, err := p.Process(ep)
	if err != nil {
		return err
	}
	// 输出送达后才标记已使用
	if _, err := io.WriteString(stdout, out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := dir.MarkUsed(entry); err != nil {
		return err
	}
	if n, err := dir.Pending(); err == nil {
		logger.Debug("profiles remaining", logger.Int("count", n))
	}
	return nil
}

func runDecrypt(cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("decrypt", flag.ContinueOnError)
	var df decodeFlags
	df.register(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("decrypt: no profile files given")
	}
	p, err := df.build()
	if err != nil {
		return err
	}

	var all error
	for _, path := range fs.Args() {
		eps, err := store.ReadBatch(path)
		if err != nil {
			return err
		}
		outs, err := p.ProcessAll(eps)
		for _, out := range outs {
			if _, werr := fmt.Fprintln(stdout, out); werr != nil {
				return werr
			}
		}
		if err != nil {
			logger.Warn("some profiles failed", logger.String("file", path), logger.Err(err))
			all = multierr.Append(all, fmt.Errorf("%s: %w", path, err))
		}
	}
	return all
}
