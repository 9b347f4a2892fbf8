package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

var Header = []string{"vehicle_number", "branch_name", "shift_name", "start_date", "end_date", "priority"}

var ErrInvalidHeader = errors.New("表头不正确")

// ReadCSV 读取导入文件。列数不足的行用空字符串补齐，交给 Import 报告该行的错误，
// 多出来的列会被忽略。
func ReadCSV(r io.Reader) ([]domain.RawAssignmentRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: 文件为空", ErrInvalidHeader)
		}
		return nil, err
	}
	for i := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(headers[i], "\ufeff")))
	}
	if len(headers) < len(Header) || !slices.Equal(headers[:len(Header)], Header) {
		return nil, fmt.Errorf("%w: 应为 %s", ErrInvalidHeader, strings.Join(Header, ","))
	}

	rows := make([]domain.RawAssignmentRow, 0)
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}

		for len(record) < len(Header) {
			record = append(record, "")
		}
		rows = append(rows, domain.RawAssignmentRow{
			VehicleNumber: record[0],
			BranchName:    record[1],
			ShiftName:     record[2],
			StartDate:     record[3],
			EndDate:       record[4],
			Priority:      record[5],
		})
	}

	return rows, nil
}
