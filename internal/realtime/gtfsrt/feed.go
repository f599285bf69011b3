package gtfsrt

import (
	"fmt"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/lapaz-movil/transit/internal/realtime/gps"
)

// ContentType is the media type served for encoded feeds
const ContentType = "application/x-protobuf"

const realtimeVersion = "2.0"

// BuildFeed converts a GPS snapshot into a full-dataset GTFS-RT feed with
// one VehiclePosition entity per vehicle. A repeated IMEI collapses to its
// last report so entity ids stay unique.
func BuildFeed(positions []gps.VehiclePosition, generatedAt time.Time) *gtfs.FeedMessage {
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(realtimeVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(generatedAt.Unix())),
		},
		Entity: make([]*gtfs.FeedEntity, 0, len(positions)),
	}

	byIMEI := make(map[string]int, len(positions))
	for _, p := range positions {
		vp := &gtfs.VehiclePosition{
			Vehicle: &gtfs.VehicleDescriptor{
				Id:    proto.String(p.IMEI),
				Label: proto.String(p.IMEI),
			},
			Position: &gtfs.Position{
				Latitude:  proto.Float32(float32(p.Latitude)),
				Longitude: proto.Float32(float32(p.Longitude)),
				Bearing:   proto.Float32(float32(p.Heading)),
				Speed:     proto.Float32(float32(p.Speed / 3.6)), // km/h to m/s
			},
		}
		if p.Timestamp != nil && !p.Timestamp.IsZero() {
			vp.Timestamp = proto.Uint64(uint64(p.Timestamp.Unix()))
		}

		entity := &gtfs.FeedEntity{
			Id:      proto.String(p.IMEI),
			Vehicle: vp,
		}
		if i, ok := byIMEI[p.IMEI]; ok {
			feed.Entity[i] = entity
			continue
		}
		byIMEI[p.IMEI] = len(feed.Entity)
		feed.Entity = append(feed.Entity, entity)
	}

	return feed
}

// Encode builds and serializes the feed
func Encode(positions []gps.VehiclePosition, generatedAt time.Time) ([]byte, error) {
	data, err := proto.Marshal(BuildFeed(positions, generatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feed: %w", err)
	}
	return data, nil
}

// Decode parses a serialized feed
func Decode(data []byte) (*gtfs.FeedMessage, error) {
	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(data, feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feed: %w", err)
	}
	return feed, nil
}
