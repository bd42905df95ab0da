package vectorutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/vector"
	"github.com/papercomputeco/spool/pkg/vector/chroma"
	"github.com/papercomputeco/spool/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string
	TargetURL    string
	DBPath       string
	Dimensions   uint
	Logger       *zap.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "sqlite":
		return sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:     o.DBPath,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "chroma":
		return chroma.NewChromaDriver(chroma.Config{
			URL: o.TargetURL,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
