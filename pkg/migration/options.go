package migration

// MigrationOptions holds settings shared by every mode
type MigrationOptions struct {
	// Source credentials attached to private repositories
	Source SourceCredentials
	// DryRun builds and logs requests without submitting them
	DryRun bool
}
