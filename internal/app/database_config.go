package app

import "github.com/mstanton/labtrack/internal/database"

// ConnectionConfig converts DatabaseConfig into the database package representation.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	return database.Config{
		Driver:   c.Driver,
		Path:     c.Path,
		DSN:      c.DSN,
		Host:     c.Host,
		Port:     c.Port,
		Name:     c.Name,
		User:     c.User,
		Password: c.Password,
	}
}

// BootstrapAdmin converts BootstrapConfig into the database package representation.
func (c BootstrapConfig) BootstrapAdmin() database.BootstrapAdmin {
	return database.BootstrapAdmin{
		Username: c.AdminUsername,
		Email:    c.AdminEmail,
		Password: c.AdminPassword,
		MemberID: c.AdminMemberID,
	}
}
