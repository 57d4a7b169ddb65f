package config

const (
	defaultConfigPath         = "~/.config/dipbatch/config.toml"
	defaultStorageServiceURL  = "http://127.0.0.1:8000"
	defaultRequestTimeout     = 5
	defaultTmpDir             = "/tmp"
	defaultOutputDir          = "/tmp"
	defaultDIPCommand         = "create_dip"
	defaultDIPTimeout         = 3600
	defaultSharedDirectory    = "/var/archivematica/sharedDirectory/"
	defaultPollAttempts       = 60
	defaultPollInterval       = 10
	defaultDeletePolicy       = DeleteOnSuccess
	defaultAtoMCommand        = "atom_upload"
	defaultAtoMURL            = "http://192.168.168.193"
	defaultRsyncTarget        = "192.168.168.193:/tmp"
	defaultAtoMTimeout        = 3600
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogDir             = "~/.local/share/dipbatch/logs"
	defaultLogFile            = "dipbatch.log"
	defaultLogRetentionDays   = 30
	defaultCleanFailedStaging = true
	storageServiceAPIKeyEnv   = "DIPBATCH_SS_API_KEY"
	storageServiceUserEnv     = "DIPBATCH_SS_USER"
	atomPasswordEnv           = "DIPBATCH_ATOM_PASSWORD"
	defaultStatusUploaded     = "UPLOADED"
	defaultStatusVerified     = "VERIFIED"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		StorageService: StorageService{
			URL:            defaultStorageServiceURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Batch: Batch{
			TmpDir:    defaultTmpDir,
			OutputDir: defaultOutputDir,
			Statuses:  []string{defaultStatusUploaded, defaultStatusVerified},
		},
		DIPCreation: DIPCreation{
			Command: defaultDIPCommand,
			Timeout: defaultDIPTimeout,
		},
		SSUpload: SSUpload{
			SharedDirectory:    defaultSharedDirectory,
			PollAttempts:       defaultPollAttempts,
			PollInterval:       defaultPollInterval,
			DeletePolicy:       defaultDeletePolicy,
			CleanFailedStaging: defaultCleanFailedStaging,
		},
		AtoM: AtoM{
			Command:     defaultAtoMCommand,
			URL:         defaultAtoMURL,
			RsyncTarget: defaultRsyncTarget,
			Timeout:     defaultAtoMTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			Dir:           defaultLogDir,
			File:          defaultLogFile,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
