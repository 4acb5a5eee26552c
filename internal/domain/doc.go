// Package domain models groundwater storage anomaly estimation from satellite
// gravimetry and land-surface model output.
//
// # Data Sources
//
// Total water storage (TWS) anomalies come from GRACE / GRACE-FO gravimetry
// (variable "lwe_thickness", equivalent water height). Surface storage
// components come from GLDAS land-surface model output: canopy interception
// ("CanopInt_inst"), soil moisture layers ("SoilMoi*_inst") and snow water
// equivalent ("SWE_inst"), all in kg m-2.
//
// # Pipeline
//
//	ExtractGrid -> Regrid (interp) -> RestrictToTimes -> MonthlyAnomaly -> Combine
//
// Every stage returns a new [Field]; fields are never mutated once built.
//
// # Missing Values
//
// Missing samples are NaN in memory. Readers translate _FillValue and
// missing_value to NaN and writers translate NaN back to [FillValue].
// NaN propagates through arithmetic, so a missing input cell yields a
// missing output cell.
//
// # Longitude Convention
//
// The canonical convention is (-180, 180]. [NormalizeLongitude] subtracts 360
// from values above 180 and is idempotent.
//
// # Water Balance
//
//	GWS [cm] = 100 * (TWS [m] - sum(component [kg m-2] / 1000 [kg m-3]))
//
// See [Combine] for the missing time step policy.
package domain
