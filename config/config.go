package config

import (
    "log"
    "os"

    "gopkg.in/yaml.v2"
)

type Config struct {
    Server struct {
        Port string `yaml:"port"`
    } `yaml:"server"`
    MySQL struct {
        DSN string `yaml:"dsn"`
    } `yaml:"mysql"`
    AI struct {
        ScriptAPI   string `yaml:"script_api"`
        ScriptModel string `yaml:"script_model"`
        ScriptKey   string `yaml:"script_key"`
        VoiceAPI    string `yaml:"voice_api"`
        VoiceLang   string `yaml:"voice_lang"`
    } `yaml:"ai"`

    Redis struct {
        Addr     string `yaml:"addr"`
        Password string `yaml:"password"`
    } `yaml:"redis"`
    Output struct {
        Dir string `yaml:"dir"` // 本地输出根目录，下设 animations/voices/final
    } `yaml:"output"`
    MinIO struct {
        Endpoint  string `yaml:"endpoint"`
        AccessKey string `yaml:"access_key"`
        SecretKey string `yaml:"secret_key"`
        Bucket    string `yaml:"bucket"`
        UseSSL    bool   `yaml:"use_ssl"`
        Domain    string `yaml:"domain"`
    } `yaml:"minio"`
}

var AppConfig *Config

func InitConfig() {
    f, err := os.Open("config/config.yaml")
    if err != nil {
        log.Fatalf("配置文件读取失败: %v", err)
    }
    defer f.Close()
    decoder := yaml.NewDecoder(f)
    AppConfig = &Config{}
    if err := decoder.Decode(AppConfig); err != nil {
        log.Fatalf("配置文件解析失败: %v", err)
    }
    if AppConfig.Output.Dir == "" {
        AppConfig.Output.Dir = "output"
    }
}
