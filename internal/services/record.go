package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/pkg/response"
)

// RecordService owns record CRUD and the record query pipeline.
type RecordService struct {
	db     *gorm.DB
	perm   *PermissionService
	types  *FieldTypeService
	fields *FieldService
}

func NewRecordService(db *gorm.DB, perm *PermissionService, types *FieldTypeService, fields *FieldService) *RecordService {
	return &RecordService{db: db, perm: perm, types: types, fields: fields}
}

// QueryRequest is a record listing request. Explicit Filters or Sorts
// replace the view's persisted ones entirely, not merge with them.
type QueryRequest struct {
	ViewID      string              `json:"viewId"`
	Filters     []models.FilterItem `json:"filters"`
	Sorts       []models.SortItem   `json:"sorts"`
	FilterLogic string              `json:"filterLogic"`
	Cursor      string              `json:"cursor"`
	PageSize    int                 `json:"pageSize"`
}

// QueryResult is one page of records.
type QueryResult struct {
	Records    []RecordData `json:"records"`
	Total      int          `json:"total"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// Query runs the filter, sort and pagination pipeline over a table.
// The caller needs table read access; owners may query without a view,
// everyone else must also name a view they hold a grant on.
func (s *RecordService) Query(tenantID, userID, tableID string, req QueryRequest) (*QueryResult, *response.AppError) {
	table, appErr := s.perm.CheckTableRead(tenantID, userID, tableID)
	if appErr != nil {
		return nil, appErr
	}

	filters := req.Filters
	sorts := req.Sorts
	logic := req.FilterLogic
	if logic != "" && logic != "and" && logic != "or" {
		return nil, response.NewBadRequest("filterLogic must be and or or")
	}

	if req.ViewID == "" {
		if !s.perm.IsOwner(tenantID, userID) {
			return nil, response.NewBadRequest("viewId is required")
		}
	} else {
		var view models.View
		err := s.db.Where("id = ? AND table_id = ?", req.ViewID, table.ID).First(&view).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("view not found")
		}
		if err != nil {
			return nil, response.NewServerError("failed to load view")
		}
		if appErr := s.perm.CheckViewRead(tenantID, userID, &view); appErr != nil {
			return nil, appErr
		}
		cfg := view.Config()
		if filters == nil {
			filters = cfg.Filters
		}
		if sorts == nil {
			sorts = cfg.Sorts
		}
		if logic == "" {
			logic = cfg.FilterLogic
		}
	}

	fieldMap, appErr := s.fields.Map(table.ID)
	if appErr != nil {
		return nil, appErr
	}

	records, appErr := s.Load(table.ID)
	if appErr != nil {
		return nil, appErr
	}

	records = ApplyFilters(records, filters, logic, fieldMap)
	records = ApplySorts(records, sorts, fieldMap)

	page, next, appErr := Paginate(records, req.Cursor, req.PageSize)
	if appErr != nil {
		return nil, appErr
	}
	return &QueryResult{Records: page, Total: len(records), NextCursor: next}, nil
}

// Load materializes every record of a table with its cell values.
func (s *RecordService) Load(tableID string) ([]RecordData, *response.AppError) {
	var rows []models.Record
	if err := s.db.Where("table_id = ?", tableID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, response.NewServerError("failed to load records")
	}
	if len(rows) == 0 {
		return []RecordData{}, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	var cells []models.RecordValue
	if err := s.db.Where("record_id IN ?", ids).Find(&cells).Error; err != nil {
		return nil, response.NewServerError("failed to load record values")
	}

	valuesByRecord := make(map[string]map[string]any, len(rows))
	for _, cell := range cells {
		if v := cell.Value(); v != nil {
			m := valuesByRecord[cell.RecordID]
			if m == nil {
				m = make(map[string]any)
				valuesByRecord[cell.RecordID] = m
			}
			m[cell.FieldID] = v
		}
	}

	out := make([]RecordData, len(rows))
	for i, r := range rows {
		values := valuesByRecord[r.ID]
		if values == nil {
			values = map[string]any{}
		}
		out[i] = RecordData{ID: r.ID, CreatedAt: r.CreatedAt, Values: values}
	}
	return out, nil
}

// Get returns one record with its values.
func (s *RecordService) Get(tenantID, userID, tableID, recordID string) (*RecordData, *response.AppError) {
	table, appErr := s.perm.CheckTableRead(tenantID, userID, tableID)
	if appErr != nil {
		return nil, appErr
	}

	var row models.Record
	err := s.db.Where("id = ? AND table_id = ?", recordID, table.ID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("record not found")
	}
	if err != nil {
		return nil, response.NewServerError("failed to load record")
	}

	var cells []models.RecordValue
	if err := s.db.Where("record_id = ?", row.ID).Find(&cells).Error; err != nil {
		return nil, response.NewServerError("failed to load record values")
	}

	values := map[string]any{}
	for _, cell := range cells {
		if v := cell.Value(); v != nil {
			values[cell.FieldID] = v
		}
	}
	return &RecordData{ID: row.ID, CreatedAt: row.CreatedAt, Values: values}, nil
}

// Create inserts a record with validated cell values.
func (s *RecordService) Create(tenantID, userID, tableID string, values map[string]any) (*RecordData, *response.AppError) {
	table, appErr := s.perm.CheckTableWrite(tenantID, userID, tableID)
	if appErr != nil {
		return nil, appErr
	}
	if appErr := s.perm.CheckButton(tenantID, userID, tableID, ButtonCreateRecord); appErr != nil {
		return nil, appErr
	}

	normalized, appErr := s.validateValues(tenantID, table, values)
	if appErr != nil {
		return nil, appErr
	}

	record := models.Record{
		ID:       models.NewID("rec"),
		TenantID: tenantID,
		TableID:  table.ID,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return writeCells(tx, record.ID, normalized)
	})
	if err != nil {
		return nil, response.NewServerError("failed to create record")
	}
	return &RecordData{ID: record.ID, CreatedAt: record.CreatedAt, Values: nonNilValues(normalized)}, nil
}

// Update patches the given cells of a record. A nil value clears the cell.
func (s *RecordService) Update(tenantID, userID, tableID, recordID string, values map[string]any) (*RecordData, *response.AppError) {
	table, appErr := s.perm.CheckTableWrite(tenantID, userID, tableID)
	if appErr != nil {
		return nil, appErr
	}

	var row models.Record
	err := s.db.Where("id = ? AND table_id = ?", recordID, table.ID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("record not found")
	}
	if err != nil {
		return nil, response.NewServerError("failed to load record")
	}

	normalized, appErr := s.validateValues(tenantID, table, values)
	if appErr != nil {
		return nil, appErr
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := writeCells(tx, row.ID, normalized); err != nil {
			return err
		}
		return tx.Model(&row).Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, response.NewServerError("failed to update record")
	}
	return s.Get(tenantID, userID, tableID, recordID)
}

// Delete removes records and their values.
func (s *RecordService) Delete(tenantID, userID, tableID string, recordIDs []string) *response.AppError {
	table, appErr := s.perm.CheckTableWrite(tenantID, userID, tableID)
	if appErr != nil {
		return appErr
	}
	if appErr := s.perm.CheckButton(tenantID, userID, tableID, ButtonDeleteRecord); appErr != nil {
		return appErr
	}
	if len(recordIDs) == 0 {
		return response.NewBadRequest("no record ids given")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id IN ?", recordIDs).Delete(&models.RecordValue{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ? AND table_id = ?", recordIDs, table.ID).Delete(&models.Record{}).Error
	})
	if err != nil {
		return response.NewServerError("failed to delete records")
	}
	return nil
}

// validateValues normalizes a patch of cell values against the table's
// field definitions. Unknown field ids are rejected.
func (s *RecordService) validateValues(tenantID string, table *models.Table, values map[string]any) (map[string]any, *response.AppError) {
	fieldMap, appErr := s.fields.Map(table.ID)
	if appErr != nil {
		return nil, appErr
	}

	var memberIDs map[string]bool
	normalized := make(map[string]any, len(values))
	for fieldID, value := range values {
		field, ok := fieldMap[fieldID]
		if !ok {
			return nil, response.NewBadRequest("unknown field: " + fieldID)
		}
		if field.Type == models.FieldTypeMember && memberIDs == nil {
			users, appErr := s.perm.ReferenceMembers(tenantID, table.ID)
			if appErr != nil {
				return nil, appErr
			}
			memberIDs = make(map[string]bool, len(users))
			for _, u := range users {
				memberIDs[u.ID] = true
			}
		}
		v, appErr := s.types.Validate(field, value, memberIDs)
		if appErr != nil {
			return nil, appErr
		}
		normalized[fieldID] = v
	}
	return normalized, nil
}

// writeCells upserts the cell rows for one record; nil values delete.
func writeCells(tx *gorm.DB, recordID string, values map[string]any) error {
	for fieldID, value := range values {
		if value == nil {
			if err := tx.Where("record_id = ? AND field_id = ?", recordID, fieldID).
				Delete(&models.RecordValue{}).Error; err != nil {
				return err
			}
			continue
		}
		encoded := models.EncodeValue(value)
		var cell models.RecordValue
		err := tx.Where("record_id = ? AND field_id = ?", recordID, fieldID).First(&cell).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cell = models.RecordValue{RecordID: recordID, FieldID: fieldID, ValueJSON: encoded}
			if err := tx.Create(&cell).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&cell).Update("value_json", encoded).Error; err != nil {
			return err
		}
	}
	return nil
}

func nonNilValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
