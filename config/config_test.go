// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

// configFile writes the specified JSON contents into a temporary
// configuration file, returning its path.
func configFile(contents string) string {
	path := filepath.Join(GinkgoT().TempDir(), "config.json")
	Expect(os.WriteFile(path, []byte(contents), 0o600)).To(Succeed())
	return path
}

// setenv sets an environment variable for the duration of the current test.
func setenv(name, value string) {
	old, ok := os.LookupEnv(name)
	Expect(os.Setenv(name, value)).To(Succeed())
	DeferCleanup(func() {
		if ok {
			_ = os.Setenv(name, old)
			return
		}
		_ = os.Unsetenv(name)
	})
}

var _ = Describe("configuration", func() {

	It("fills in defaults", func() {
		cfg := Successful(Load(configFile(`{}`)))
		Expect(*cfg).To(Equal(Config{
			DockerImages:    []string{"atdr.meo.ws/archiveteam/urls-grab"},
			DockerSocket:    "/var/run/docker.sock",
			ListenAddress:   "0.0.0.0:8000",
			Extractor:       "urlsgrab",
			PollInterval:    60 * time.Second,
			RetryInterval:   10 * time.Second,
			Backoff:         time.Second,
			SweepInterval:   10 * time.Second,
			TTL:             60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		}))
	})

	It("reads settings", func() {
		cfg := Successful(Load(configFile(`{
			"docker_images": ["foo", "registry.example:5000/bar"],
			"docker_socket": "/run/docker.sock",
			"listen_address": "127.0.0.1:9000",
			"poll_interval": "30s",
			"ttl": "2m",
			"max_opening": 4
		}`)))
		Expect(cfg.DockerImages).To(ConsistOf("foo", "registry.example:5000/bar"))
		Expect(cfg.DockerSocket).To(Equal("/run/docker.sock"))
		Expect(cfg.ListenAddress).To(Equal("127.0.0.1:9000"))
		Expect(cfg.PollInterval).To(Equal(30 * time.Second))
		Expect(cfg.TTL).To(Equal(2 * time.Minute))
		Expect(cfg.MaxOpening).To(Equal(4))
		Expect(cfg.Backoff).To(Equal(time.Second))
	})

	It("lets the environment override settings", func() {
		setenv("LOGTALLY_LISTEN_ADDRESS", "[::1]:8123")
		setenv("LOGTALLY_DOCKER_IMAGES", "foo,bar")
		setenv("LOGTALLY_BACKOFF", "5s")
		cfg := Successful(Load(configFile(`{"listen_address": "127.0.0.1:9000"}`)))
		Expect(cfg.ListenAddress).To(Equal("[::1]:8123"))
		Expect(cfg.DockerImages).To(ConsistOf("foo", "bar"))
		Expect(cfg.Backoff).To(Equal(5 * time.Second))
	})

	It("fails for a missing configuration file", func() {
		Expect(Load(filepath.Join(GinkgoT().TempDir(), "nope.json"))).Error().To(
			MatchError(ContainSubstring("cannot read configuration file")))
	})

	It("fails for malformed JSON", func() {
		Expect(Load(configFile(`{"docker_images": [`))).Error().To(HaveOccurred())
	})

	DescribeTable("rejecting invalid settings",
		func(contents string, reason string) {
			Expect(Load(configFile(contents))).Error().To(
				MatchError(ContainSubstring(reason)))
		},
		Entry("no images", `{"docker_images": []}`, "docker_images must not be empty"),
		Entry("empty image name", `{"docker_images": ["foo", ""]}`, "must not contain empty image names"),
		Entry("no socket", `{"docker_socket": ""}`, "docker_socket must not be empty"),
		Entry("no listen address", `{"listen_address": ""}`, "listen_address must not be empty"),
		Entry("zero poll interval", `{"poll_interval": "0s"}`, "poll_interval must be positive"),
		Entry("negative ttl", `{"ttl": "-1s"}`, "ttl must be positive"),
		Entry("negative max opening", `{"max_opening": -1}`, "max_opening must not be negative"),
		Entry("bogus duration", `{"backoff": "soon"}`, "cannot decode"),
	)

	It("reports all issues at once", func() {
		cfg := Config{}
		err := cfg.Validate()
		Expect(err).To(MatchError(ContainSubstring("docker_images must not be empty")))
		Expect(err).To(MatchError(ContainSubstring("docker_socket must not be empty")))
		Expect(err).To(MatchError(ContainSubstring("shutdown_timeout must be positive")))
	})

})
