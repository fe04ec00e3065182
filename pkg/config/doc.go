/*
Package config loads the two configuration layers the agent needs.

StartupConfig is read once from an ini file (gopkg.in/ini.v1) at
process start and names only the store's local data directory and this
node's name (the hostname when left empty) — enough to open the store. Once the store is open, the
cluster-wide Configuration record (pkg/types.Configuration) is read
fresh from it every tick via Loader.Load, with the base64-encoded
secret fields (see types.Base64EncodedOptions) decoded in place,
mirroring ClusterConfig._init_options in the source implementation.
*/
package config
