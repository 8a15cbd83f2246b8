// Package config 从 YAML/JSON 加载 Actor 运行时配置
//
// 配置位于 actors 节下，未设置的字段使用默认值：
//
//	actors:
//	  mailbox_capacity: 1000
//	  overflow_policy: BlockProducer   # BlockProducer | DropOldest | DropNewest | FailFast
//	  mailbox_kind: Bounded            # Bounded | Unbounded | CountingQueue
//	  retry_count: 3
//	  stop_on_unhandled_error: true
//	  max_degree_of_parallelism: 8
//	  director_idle_threshold_seconds: 60
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/actor"
	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/workspace"
)

// Section 配置节名称
const Section = "actors"

// Actors actors 节的文件结构
type Actors struct {
	MailboxCapacity              int    `koanf:"mailbox_capacity"`
	OverflowPolicy               string `koanf:"overflow_policy"`
	MailboxKind                  string `koanf:"mailbox_kind"`
	RetryCount                   int    `koanf:"retry_count"`
	StopOnUnhandledError         bool   `koanf:"stop_on_unhandled_error"`
	MaxDegreeOfParallelism       int    `koanf:"max_degree_of_parallelism"`
	DirectorIdleThresholdSeconds int    `koanf:"director_idle_threshold_seconds"`
}

type document struct {
	Actors Actors `koanf:"actors"`
}

// Defaults 默认配置
func Defaults() Actors {
	return Actors{
		MailboxCapacity:              actor.DefaultMailboxCapacity,
		OverflowPolicy:               actor.BlockProducer.String(),
		MailboxKind:                  actor.Bounded.String(),
		RetryCount:                   actor.DefaultRetryCount,
		StopOnUnhandledError:         actor.DefaultStopOnUnhandledError,
		MaxDegreeOfParallelism:       runtime.NumCPU(),
		DirectorIdleThresholdSeconds: int(workspace.DefaultDirectorIdleThreshold / time.Second),
	}
}

// Format 配置格式
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

func (f Format) parser() (koanf.Parser, error) {
	switch f {
	case YAML:
		return yaml.Parser(), nil
	case JSON:
		return json.Parser(), nil
	}
	return nil, fmt.Errorf("unsupported config format %q", string(f))
}

// Load 从文件加载，按扩展名选择解析器（.json 为 JSON，其余为 YAML）
func Load(path string) (*workspace.Config, error) {
	format := YAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = JSON
	}
	parser, err := format.parser()
	if err != nil {
		return nil, err
	}

	k, err := withDefaults()
	if err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return build(k)
}

// LoadBytes 从内存数据加载
func LoadBytes(data []byte, format Format) (*workspace.Config, error) {
	parser, err := format.parser()
	if err != nil {
		return nil, err
	}

	k, err := withDefaults()
	if err != nil {
		return nil, err
	}
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("parse %s config: %w", format, err)
	}
	return build(k)
}

func withDefaults() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(document{Actors: Defaults()}, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}
	return k, nil
}

func build(k *koanf.Koanf) (*workspace.Config, error) {
	var a Actors
	if err := k.Unmarshal(Section, &a); err != nil {
		return nil, fmt.Errorf("decode %s section: %w", Section, err)
	}
	return a.WorkspaceConfig()
}

// WorkspaceConfig 转换为运行时配置并校验
func (a Actors) WorkspaceConfig() (*workspace.Config, error) {
	policy, err := actor.ParseOverflowPolicy(a.OverflowPolicy)
	if err != nil {
		return nil, err
	}
	kind, err := actor.ParseMailboxKind(a.MailboxKind)
	if err != nil {
		return nil, err
	}

	cfg := &workspace.Config{
		Actor: &actor.Config{
			MailboxCapacity:      a.MailboxCapacity,
			OverflowPolicy:       policy,
			MailboxKind:          kind,
			RetryCount:           a.RetryCount,
			StopOnUnhandledError: a.StopOnUnhandledError,
		},
		MaxDegreeOfParallelism: a.MaxDegreeOfParallelism,
		DirectorIdleThreshold:  time.Duration(a.DirectorIdleThresholdSeconds) * time.Second,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
