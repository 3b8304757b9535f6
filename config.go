package main

import (
	"errors"
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var envReplacer = strings.NewReplacer("-", "_", ".", "_")

// 参数对应的环境变量名，如-redis-addr对应REDIS_ADDR
func envKey(flagName string) string {
	return strings.ToUpper(envReplacer.Replace(flagName))
}

// 读取.env文件，并用环境变量覆盖参数默认值；命令行参数优先
func loadEnv(fs *flag.FlagSet, files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	var errs []error
	fs.VisitAll(func(f *flag.Flag) {
		if v, ok := os.LookupEnv(envKey(f.Name)); ok {
			if err := f.Value.Set(v); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
