package repository

import (
	"context"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/joseph-ayodele/nomina-receipts/constants"
)

const (
	tableBatches    = "batches"
	tableBatchFiles = "batch_files"
	tableEmployees  = "employees"
	tableReceipts   = "payroll_receipts"
)

var (
	// BatchesColumns holds the columns for the "batches" table.
	BatchesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "period_type", Type: field.TypeEnum, Enums: constants.PeriodTypesAsStringSlice()},
		{Name: "period_id", Type: field.TypeString, Size: 64},
		{Name: "fecha_periodo", Type: field.TypeTime, SchemaType: map[string]string{dialect.Postgres: "date"}},
		{Name: "zip_filename", Type: field.TypeString, Nullable: true},
		{Name: "zip_url", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "status", Type: field.TypeEnum, Enums: constants.BatchStatuses, Default: string(constants.BatchStatusCreated)},
		{Name: "total_files", Type: field.TypeInt, Default: 0},
		{Name: "processed_files", Type: field.TypeInt, Default: 0},
		{Name: "success_files", Type: field.TypeInt, Default: 0},
		{Name: "error_files", Type: field.TypeInt, Default: 0},
		{Name: "created_by", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
	}
	// BatchesTable holds the schema information for the "batches" table.
	BatchesTable = &schema.Table{
		Name:       tableBatches,
		Columns:    BatchesColumns,
		PrimaryKey: []*schema.Column{BatchesColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "batch_status_updated_at",
				Unique:  false,
				Columns: []*schema.Column{BatchesColumns[6], BatchesColumns[13]},
			},
		},
	}
	// BatchFilesColumns holds the columns for the "batch_files" table.
	BatchFilesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "filename", Type: field.TypeString},
		{Name: "file_type", Type: field.TypeEnum, Enums: constants.FileTypes},
		{Name: "status", Type: field.TypeEnum, Enums: constants.FileStatuses, Default: string(constants.FileStatusPending)},
		{Name: "error_message", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "rfc_extracted", Type: field.TypeString, Nullable: true, Size: 13},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "processed_at", Type: field.TypeTime, Nullable: true},
		{Name: "batch_id", Type: field.TypeInt},
	}
	// BatchFilesTable holds the schema information for the "batch_files" table.
	BatchFilesTable = &schema.Table{
		Name:       tableBatchFiles,
		Columns:    BatchFilesColumns,
		PrimaryKey: []*schema.Column{BatchFilesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "batch_files_batches_files",
				Columns:    []*schema.Column{BatchFilesColumns[8]},
				RefColumns: []*schema.Column{BatchesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "batchfile_batch_id",
				Unique:  false,
				Columns: []*schema.Column{BatchFilesColumns[8]},
			},
		},
	}
	// EmployeesColumns holds the columns for the "employees" table.
	EmployeesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "rfc", Type: field.TypeString, Unique: true, Size: 13},
		{Name: "name", Type: field.TypeString},
		{Name: "carpeta", Type: field.TypeString, Nullable: true},
		{Name: "password_hash", Type: field.TypeString},
		{Name: "legacy_id", Type: field.TypeInt, Nullable: true},
		{Name: "active", Type: field.TypeBool, Default: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// EmployeesTable holds the schema information for the "employees" table.
	EmployeesTable = &schema.Table{
		Name:       tableEmployees,
		Columns:    EmployeesColumns,
		PrimaryKey: []*schema.Column{EmployeesColumns[0]},
	}
	// PayrollReceiptsColumns holds the columns for the "payroll_receipts" table.
	PayrollReceiptsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "rfc", Type: field.TypeString, Size: 13},
		{Name: "fecha_periodo", Type: field.TypeTime, SchemaType: map[string]string{dialect.Postgres: "date"}},
		{Name: "rfc_fecha", Type: field.TypeString, Unique: true},
		{Name: "period_type", Type: field.TypeEnum, Enums: constants.PeriodTypesAsStringSlice()},
		{Name: "period_id", Type: field.TypeString, Nullable: true, Size: 64},
		{Name: "pdf1_filename", Type: field.TypeString, Nullable: true},
		{Name: "pdf2_filename", Type: field.TypeString, Nullable: true},
		{Name: "xml_filename", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "employee_id", Type: field.TypeInt},
		{Name: "batch_id", Type: field.TypeInt, Nullable: true},
	}
	// PayrollReceiptsTable holds the schema information for the "payroll_receipts" table.
	PayrollReceiptsTable = &schema.Table{
		Name:       tableReceipts,
		Columns:    PayrollReceiptsColumns,
		PrimaryKey: []*schema.Column{PayrollReceiptsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "payroll_receipts_employees_receipts",
				Columns:    []*schema.Column{PayrollReceiptsColumns[11]},
				RefColumns: []*schema.Column{EmployeesColumns[0]},
				OnDelete:   schema.NoAction,
			},
			{
				Symbol:     "payroll_receipts_batches_receipts",
				Columns:    []*schema.Column{PayrollReceiptsColumns[12]},
				RefColumns: []*schema.Column{BatchesColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "payrollreceipt_rfc_fecha_periodo",
				Unique:  true,
				Columns: []*schema.Column{PayrollReceiptsColumns[1], PayrollReceiptsColumns[2]},
			},
			{
				Name:    "payrollreceipt_batch_id",
				Unique:  false,
				Columns: []*schema.Column{PayrollReceiptsColumns[12]},
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		BatchesTable,
		BatchFilesTable,
		EmployeesTable,
		PayrollReceiptsTable,
	}
)

func init() {
	BatchFilesTable.ForeignKeys[0].RefTable = BatchesTable
	PayrollReceiptsTable.ForeignKeys[0].RefTable = EmployeesTable
	PayrollReceiptsTable.ForeignKeys[1].RefTable = BatchesTable
}

// Migrate creates or upgrades the schema.
func Migrate(ctx context.Context, drv *entsql.Driver, logger *slog.Logger) error {
	logger.Info("running schema migration", "dialect", drv.Dialect())
	m, err := schema.NewMigrate(drv)
	if err != nil {
		logger.Error("failed to create migrator", "error", err)
		return err
	}
	if err := m.Create(ctx, Tables...); err != nil {
		logger.Error("schema migration failed", "error", err)
		return err
	}
	logger.Info("schema migration complete", "tables", len(Tables))
	return nil
}
