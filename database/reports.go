package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/askpdf/helper"
	"github.com/siherrmann/askpdf/model"
	"github.com/siherrmann/askpdf/sql"
)

// ReportsDBHandlerFunctions defines the interface for Reports database operations.
type ReportsDBHandlerFunctions interface {
	InsertReport(report *model.Report) error
	SelectReport(rid uuid.UUID) (*model.Report, error)
	SelectAllReports(lastCreatedAt *time.Time, limit int) ([]*model.Report, error)
	DeleteReport(rid uuid.UUID) error
}

// ReportsDBHandler archives finished agent reports
type ReportsDBHandler struct {
	db *helper.Database
}

// NewReportsDBHandler creates a new reports database handler.
// It loads the report-related SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewReportsDBHandler(db *helper.Database, force bool) (*ReportsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	reportsDbHandler := &ReportsDBHandler{
		db: db,
	}

	err := sql.LoadReportsSql(reportsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load reports sql", err)
	}

	err = reportsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ReportsDBHandler")

	return reportsDbHandler, nil
}

// CreateTable creates the 'reports' table in the database.
// If the table already exists, it does not create it again.
func (h *ReportsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_reports();`)
	if err != nil {
		return helper.NewError("init reports", err)
	}

	h.db.Logger.Info("Checked/created table reports")

	return nil
}

// InsertReport archives a report and sets its ID and CreatedAt.
// The RID of the report is kept, a report without RID gets a new one.
func (h *ReportsDBHandler) InsertReport(report *model.Report) error {
	documentErrors, err := marshalDocumentErrors(report.DocumentErrors)
	if err != nil {
		return helper.NewError("marshal document errors", err)
	}

	var rid interface{}
	if report.RID != uuid.Nil {
		rid = report.RID
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_report($1, $2, $3, $4)`,
		rid,
		report.Channel,
		report.Questions,
		documentErrors,
	)

	var documentErrorsJSON []byte
	err = row.Scan(
		&report.ID,
		&report.RID,
		&report.Channel,
		&report.Questions,
		&documentErrorsJSON,
		&report.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	report.DocumentErrors, err = unmarshalDocumentErrors(documentErrorsJSON)
	if err != nil {
		return helper.NewError("unmarshal document errors", err)
	}

	return nil
}

// SelectReport retrieves a report by RID
func (h *ReportsDBHandler) SelectReport(rid uuid.UUID) (*model.Report, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_report($1)`,
		rid,
	)

	report := &model.Report{}
	var documentErrorsJSON []byte
	err := row.Scan(
		&report.ID,
		&report.RID,
		&report.Channel,
		&report.Questions,
		&documentErrorsJSON,
		&report.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	report.DocumentErrors, err = unmarshalDocumentErrors(documentErrorsJSON)
	if err != nil {
		return nil, helper.NewError("unmarshal document errors", err)
	}

	return report, nil
}

// SelectAllReports retrieves reports newest first.
// Pass the CreatedAt of the last report of the previous page to paginate, nil for the first page.
func (h *ReportsDBHandler) SelectAllReports(lastCreatedAt *time.Time, limit int) ([]*model.Report, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_all_reports($1, $2)`,
		lastCreatedAt,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		report := &model.Report{}
		var documentErrorsJSON []byte
		err := rows.Scan(
			&report.ID,
			&report.RID,
			&report.Channel,
			&report.Questions,
			&documentErrorsJSON,
			&report.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		report.DocumentErrors, err = unmarshalDocumentErrors(documentErrorsJSON)
		if err != nil {
			return nil, helper.NewError("unmarshal document errors", err)
		}

		reports = append(reports, report)
	}

	if err = rows.Err(); err != nil {
		return nil, helper.NewError("rows", err)
	}

	return reports, nil
}

// DeleteReport deletes a report by RID
func (h *ReportsDBHandler) DeleteReport(rid uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_report($1)`,
		rid,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func marshalDocumentErrors(documentErrors []model.DocumentError) ([]byte, error) {
	if documentErrors == nil {
		documentErrors = []model.DocumentError{}
	}
	return json.Marshal(documentErrors)
}

func unmarshalDocumentErrors(b []byte) ([]model.DocumentError, error) {
	var documentErrors []model.DocumentError
	if len(b) == 0 {
		return documentErrors, nil
	}
	if err := json.Unmarshal(b, &documentErrors); err != nil {
		return nil, err
	}
	if len(documentErrors) == 0 {
		return nil, nil
	}
	return documentErrors, nil
}
