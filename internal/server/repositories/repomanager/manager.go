package repomanager

import (
	"context"
	"database/sql"

	"github.com/karenhirayama/filevault/internal/dbx"
	"github.com/karenhirayama/filevault/internal/server/repositories/files"
	"github.com/karenhirayama/filevault/internal/server/repositories/folders"
	"github.com/karenhirayama/filevault/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Folders(db dbx.DBTX) folders.Repository
	Files(db dbx.DBTX) files.Repository
}
