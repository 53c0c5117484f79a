package feed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/yanun0323/errors"

	"main/internal/model"
)

// LoadCSV reads klines from a CSV file laid out as
// time_ms,open,high,low,close,volume with an optional header row.
func LoadCSV(path string) ([]model.Kline, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open kline csv")
	}
	defer file.Close()
	return parseCSV(file)
}

func parseCSV(r io.Reader) ([]model.Kline, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 6

	var klines []model.Kline
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return klines, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "read kline csv")
		}
		if line == 1 && isHeader(record) {
			continue
		}
		k, err := parseRecord(record)
		if err != nil {
			return nil, errors.Wrap(err, "parse kline csv").With("line", line)
		}
		klines = append(klines, k)
	}
}

func isHeader(record []string) bool {
	_, err := strconv.ParseInt(record[0], 10, 64)
	return err != nil
}

func parseRecord(record []string) (model.Kline, error) {
	ts, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return model.Kline{}, errors.Wrap(err, "timestamp")
	}
	values := make([]float64, 5)
	for i, name := range [...]string{"open", "high", "low", "close", "volume"} {
		v, err := strconv.ParseFloat(record[i+1], 64)
		if err != nil {
			return model.Kline{}, errors.Wrap(err, name)
		}
		values[i] = v
	}
	return model.Kline{
		Time:   ts,
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
