package config

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Config interface {
	Init(cmd *cobra.Command) error
	Set()
}

type VideoProfile struct {
	Width   int `mapstructure:"width"`
	Height  int `mapstructure:"height"`
	Bitrate int `mapstructure:"bitrate"` // in kilobits
}

type Server struct {
	PProf bool

	Cert   string
	Key    string
	Bind   string
	Static string
	Proxy  bool

	LibraryDir  string
	AllowEdits  bool
	ResolverURL string

	FFmpegBinary string
	MaxEncodes   int
	AudioBitrate int // in kilobits

	VideoProfiles map[string]VideoProfile `mapstructure:"video-profiles"`
}

func (Server) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().Bool("pprof", false, "enable pprof endpoint available at /debug/pprof")
	if err := viper.BindPFlag("pprof", cmd.PersistentFlags().Lookup("pprof")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("bind", "127.0.0.1:8080", "address/port/socket to serve gmma")
	if err := viper.BindPFlag("bind", cmd.PersistentFlags().Lookup("bind")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("cert", "", "path to the SSL cert used to secure the gmma server")
	if err := viper.BindPFlag("cert", cmd.PersistentFlags().Lookup("cert")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("key", "", "path to the SSL key used to secure the gmma server")
	if err := viper.BindPFlag("key", cmd.PersistentFlags().Lookup("key")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("static", "", "path to client files to serve")
	if err := viper.BindPFlag("static", cmd.PersistentFlags().Lookup("static")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("proxy", false, "allow reverse proxies")
	if err := viper.BindPFlag("proxy", cmd.PersistentFlags().Lookup("proxy")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("library-dir", "", "directory for asset records, masters and renditions")
	if err := viper.BindPFlag("library-dir", cmd.PersistentFlags().Lookup("library-dir")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("allow-edits", true, "allow mutating requests (create, ingest, delete)")
	if err := viper.BindPFlag("allow-edits", cmd.PersistentFlags().Lookup("allow-edits")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("resolver-url", "", "base URL of the remote source resolver")
	if err := viper.BindPFlag("resolver-url", cmd.PersistentFlags().Lookup("resolver-url")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("ffmpeg-binary", "", "path to ffmpeg binary")
	if err := viper.BindPFlag("ffmpeg-binary", cmd.PersistentFlags().Lookup("ffmpeg-binary")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("max-encodes", 0, "maximum number of concurrent ffmpeg encodes")
	if err := viper.BindPFlag("max-encodes", cmd.PersistentFlags().Lookup("max-encodes")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("audio-bitrate", 0, "audio rendition bitrate in kilobits")
	if err := viper.BindPFlag("audio-bitrate", cmd.PersistentFlags().Lookup("audio-bitrate")); err != nil {
		return err
	}

	return nil
}

func (s *Server) Set() {
	s.PProf = viper.GetBool("pprof")

	s.Cert = viper.GetString("cert")
	s.Key = viper.GetString("key")
	s.Bind = viper.GetString("bind")
	s.Static = viper.GetString("static")
	s.Proxy = viper.GetBool("proxy")

	s.AllowEdits = viper.GetBool("allow-edits")
	s.ResolverURL = viper.GetString("resolver-url")

	s.LibraryDir = viper.GetString("library-dir")
	if s.LibraryDir == "" {
		cwd, _ := os.Getwd()
		s.LibraryDir = cwd + "/library"
	}

	if err := os.MkdirAll(s.LibraryDir, 0755); err != nil {
		panic(err)
	}

	s.FFmpegBinary = viper.GetString("ffmpeg-binary")
	if s.FFmpegBinary == "" {
		s.FFmpegBinary = "ffmpeg"
	}

	s.MaxEncodes = viper.GetInt("max-encodes")
	if s.MaxEncodes <= 0 {
		s.MaxEncodes = 2
	}

	s.AudioBitrate = viper.GetInt("audio-bitrate")
	if s.AudioBitrate <= 0 {
		s.AudioBitrate = 192
	}

	if err := viper.UnmarshalKey("video-profiles", &s.VideoProfiles); err != nil {
		panic(err)
	}
}
