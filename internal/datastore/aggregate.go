package datastore

import (
	"context"
	"time"

	"github.com/WullT/P8-Tools/internal/observability/metrics"
)

// ListNodeIDs returns the distinct node ids, sorted. Unless includeUnavailable
// is set, only nodes with at least one available image are listed.
func (ds *DataStore) ListNodeIDs(ctx context.Context, includeUnavailable bool) (nodes []string, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpListNodes, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Model(&ImageRecord{}).Distinct("node_id")
	if !includeUnavailable {
		q = q.Where("available = ?", true)
	}
	if err = q.Order("node_id").Pluck("node_id", &nodes).Error; err != nil {
		err = dbError(err, "list_nodes")
		return nil, err
	}
	return nodes, nil
}

// AggregateByNode returns classification counts of the available images of
// every node, sorted by node id
func (ds *DataStore) AggregateByNode(ctx context.Context) (aggregates []NodeAggregate, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpAggregate, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	err = db.Model(&ImageRecord{}).
		Select(`node_id,
			COUNT(*) AS images,
			COUNT(flower) AS classified,
			SUM(CASE WHEN flower = 1 THEN 1 ELSE 0 END) AS present,
			SUM(CASE WHEN flower = 0 THEN 1 ELSE 0 END) AS uncertain,
			SUM(CASE WHEN flower = -1 THEN 1 ELSE 0 END) AS absent`).
		Where("available = ?", true).
		Group("node_id").
		Order("node_id").
		Scan(&aggregates).Error
	if err != nil {
		err = dbError(err, "aggregate_by_node")
		return nil, err
	}
	return aggregates, nil
}

// NodeSeries returns the images of one node ordered by capture time,
// regardless of availability. classifiedOnly drops images without a flower label.
func (ds *DataStore) NodeSeries(ctx context.Context, nodeID string, classifiedOnly bool) (records []ImageRecord, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpNodeSeries, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Where("node_id = ?", nodeID)
	if classifiedOnly {
		q = q.Where("flower IS NOT NULL")
	}
	if err = q.Order("date").Find(&records).Error; err != nil {
		err = dbError(err, "node_series", "node_id", nodeID)
		return nil, err
	}
	return records, nil
}

// NodeDates returns the distinct capture days of the available images of a
// node, as UTC midnights in ascending order
func (ds *DataStore) NodeDates(ctx context.Context, nodeID string) (dates []time.Time, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpNodeSeries, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var days []string
	day := ds.dialect.Day("date")
	err = db.Model(&ImageRecord{}).
		Where("node_id = ? AND available = ?", nodeID, true).
		Distinct(day+" AS day").
		Order("day").
		Pluck("day", &days).Error
	if err != nil {
		err = dbError(err, "node_dates", "node_id", nodeID)
		return nil, err
	}

	dates = make([]time.Time, 0, len(days))
	for _, d := range days {
		t, perr := time.ParseInLocation(time.DateOnly, d, time.UTC)
		if perr != nil {
			err = dbError(perr, "node_dates", "node_id", nodeID, "day", d)
			return nil, err
		}
		dates = append(dates, t)
	}
	return dates, nil
}
