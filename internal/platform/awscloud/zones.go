package awscloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// ErrInvalidZone is returned for any zone that cannot be confirmed as
// available, including when the region endpoint cannot be reached.
var ErrInvalidZone = errors.New("invalid availability zone")

// ZoneAvailable checks the zone against the region's live zone list.
func (c *Client) ZoneAvailable(ctx context.Context, zone string) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	out, err := c.ec2.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{
		Filters: []types.Filter{{
			Name:   aws.String("region-name"),
			Values: []string{c.region},
		}},
	})
	if err != nil {
		c.log.V(1).Info("zone lookup failed", "zone", zone, "error", err.Error())
		return fmt.Errorf("%w: %s", ErrInvalidZone, zone)
	}

	for _, az := range out.AvailabilityZones {
		if aws.ToString(az.ZoneName) == zone && az.State == types.AvailabilityZoneStateAvailable {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidZone, zone)
}
