package planner

// Backend is the native package format.
type Backend string

const (
	BackendDeb         Backend = "deb"
	BackendRpm         Backend = "rpm"
	BackendUnsupported Backend = "unsupported"
)

// InitIntegration is the service supervision the package installs hooks for.
type InitIntegration string

const (
	InitSystemV InitIntegration = "sysv"
	InitUpstart InitIntegration = "upstart"
	InitSystemd InitIntegration = "systemd"
	InitRunit   InitIntegration = "runit"
)

// StartWith values accepted from the command line.
const (
	StartWithSystem = "system"
	StartWithRunit  = "runit"
)

// ConfigEntry names a default configuration file the staging step writes.
type ConfigEntry string

const (
	ConfigDefaults  ConfigEntry = "defaults"
	ConfigLogRotate ConfigEntry = "logrotate"
)

// BackendPackages names the runtime dependencies in one package format.
type BackendPackages struct {
	JavaRuntime string `yaml:"javaRuntime"`
	HTTPClient  string `yaml:"httpClient"`
	SVN         string `yaml:"svn"`
	Runit       string `yaml:"runit"`
	// CurlBackends in probe order: NSS, OpenSSL, GnuTLS.
	CurlBackends []string `yaml:"curlBackends,flow"`
}

// Rules holds every threshold and name the planner decides with.
type Rules struct {
	OptimizeSince string                      `yaml:"optimizeSince"`
	OptimizeFlag  string                      `yaml:"optimizeFlag"`
	CompatTag     string                      `yaml:"compatTag"`
	CompatFlag    string                      `yaml:"compatFlag"`
	SVNCutoff     string                      `yaml:"svnCutoff"`
	Packages      map[Backend]BackendPackages `yaml:"packages"`
}

func DefaultRules() Rules {
	return Rules{
		OptimizeSince: "0.21.0",
		OptimizeFlag:  "--enable-optimize",
		CompatTag:     "0.21.0-rc1",
		CompatFlag:    "--disable-python-dependency-install",
		SVNCutoff:     "0.20.1",
		Packages: map[Backend]BackendPackages{
			BackendDeb: {
				JavaRuntime:  "java-runtime-headless",
				HTTPClient:   "libcurl3",
				SVN:          "libsvn1",
				Runit:        "runit",
				CurlBackends: []string{"libcurl4-nss-dev", "libcurl4-openssl-dev", "libcurl4-gnutls-dev"},
			},
			BackendRpm: {
				JavaRuntime:  "java-1.8.0-openjdk-headless",
				HTTPClient:   "libcurl",
				SVN:          "subversion",
				Runit:        "runit",
				CurlBackends: []string{"nss-devel", "openssl-devel", "gnutls-devel"},
			},
		},
	}
}

// Merge fills empty fields of r from def.
func (r Rules) Merge(def Rules) Rules {
	out := r
	if out.OptimizeSince == "" {
		out.OptimizeSince = def.OptimizeSince
	}
	if out.OptimizeFlag == "" {
		out.OptimizeFlag = def.OptimizeFlag
	}
	if out.CompatTag == "" {
		out.CompatTag = def.CompatTag
	}
	if out.CompatFlag == "" {
		out.CompatFlag = def.CompatFlag
	}
	if out.SVNCutoff == "" {
		out.SVNCutoff = def.SVNCutoff
	}
	merged := make(map[Backend]BackendPackages, len(def.Packages))
	for b, pkgs := range def.Packages {
		merged[b] = pkgs
	}
	for b, pkgs := range r.Packages {
		base := merged[b]
		if pkgs.JavaRuntime != "" {
			base.JavaRuntime = pkgs.JavaRuntime
		}
		if pkgs.HTTPClient != "" {
			base.HTTPClient = pkgs.HTTPClient
		}
		if pkgs.SVN != "" {
			base.SVN = pkgs.SVN
		}
		if pkgs.Runit != "" {
			base.Runit = pkgs.Runit
		}
		if len(pkgs.CurlBackends) > 0 {
			base.CurlBackends = pkgs.CurlBackends
		}
		merged[b] = base
	}
	out.Packages = merged
	return out
}
