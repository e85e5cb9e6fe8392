package credentials

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"strings"
	"time"
)

type CertificateKeyPair struct {
	Certificate    *x509.Certificate
	Key            crypto.Signer
	CertificatePem []byte
}

// ParseCertificateKeyPair loads a CA certificate and its PKCS1, PKCS8 or EC private key.
func ParseCertificateKeyPair(certPEMBlock, keyPEMBlock []byte) (result CertificateKeyPair, err error) {
	result.CertificatePem = certPEMBlock
	certDERBlock, _ := pem.Decode(certPEMBlock)
	if certDERBlock == nil || certDERBlock.Type != "CERTIFICATE" {
		return CertificateKeyPair{}, fmt.Errorf("cert pem block type is not CERTIFICATE")
	}
	result.Certificate, err = x509.ParseCertificate(certDERBlock.Bytes)
	if err != nil {
		return CertificateKeyPair{}, fmt.Errorf("failed to parse the certificate: %w", err)
	}

	keyDERBlock, _ := pem.Decode(keyPEMBlock)
	if keyDERBlock == nil || !strings.HasSuffix(keyDERBlock.Type, "PRIVATE KEY") {
		return CertificateKeyPair{}, fmt.Errorf("key pem block type is not PRIVATE KEY")
	}
	var key any
	switch keyDERBlock.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(keyDERBlock.Bytes)
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(keyDERBlock.Bytes)
	default:
		key, err = x509.ParsePKCS8PrivateKey(keyDERBlock.Bytes)
	}
	if err != nil {
		return CertificateKeyPair{}, fmt.Errorf("failed to parse the %s: %w", strings.ToLower(keyDERBlock.Type), err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return CertificateKeyPair{}, fmt.Errorf("unsupported private key type %T", key)
	}
	result.Key = signer
	return result, nil
}

// GenerateCA creates a self signed CA for development setups. It returns the pair and the PEM encoded key.
func GenerateCA(commonName string, validity time.Duration) (CertificateKeyPair, []byte, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return CertificateKeyPair{}, nil, err
	}
	serialNumber, err := newSerialNumber()
	if err != nil {
		return CertificateKeyPair{}, nil, fmt.Errorf("failed to generate certificate serial number: %w", err)
	}
	now := time.Now()
	template := x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, privateKey.Public(), privateKey)
	if err != nil {
		return CertificateKeyPair{}, nil, fmt.Errorf("failed to generate certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return CertificateKeyPair{}, nil, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	pair, err := ParseCertificateKeyPair(certPEM, keyPEM)
	if err != nil {
		return CertificateKeyPair{}, nil, err
	}
	return pair, keyPEM, nil
}

func newSerialNumber() (*big.Int, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, serialNumberLimit)
}

// Signer mints device client certificates from the service CA.
type Signer struct {
	ca       CertificateKeyPair
	validity time.Duration
	now      func() time.Time
}

func NewSigner(ca CertificateKeyPair, validity time.Duration) *Signer {
	if validity <= 0 {
		validity = 5 * 365 * 24 * time.Hour
	}
	return &Signer{ca: ca, validity: validity, now: time.Now}
}

// CaCertificatePem returns the PEM bundle devices use to trust the service.
func (s *Signer) CaCertificatePem() string {
	return string(s.ca.CertificatePem)
}

// Issue creates a new key pair and a certificate signed by the CA.
func (s *Signer) Issue() (Credential, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Credential{}, err
	}
	serialNumber, err := newSerialNumber()
	if err != nil {
		return Credential{}, fmt.Errorf("failed to generate certificate serial number: %w", err)
	}
	now := s.now()
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject:      pkix.Name{CommonName: "receiver-device"},
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(s.validity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, s.ca.Certificate, privateKey.Public(), s.ca.Key)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to generate certificate: %w", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := VerifyCertificate(certPEM, s.ca.CertificatePem, x509.ExtKeyUsageClientAuth); err != nil {
		return Credential{}, fmt.Errorf("failed to verify generated certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		Ref:              CredentialRef(der),
		CertificatePem:   string(certPEM),
		PrivateKeyPem:    string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})),
		CaCertificatePem: string(s.ca.CertificatePem),
		NotAfter:         template.NotAfter,
	}, nil
}

// CredentialRef is the hex encoded SHA-256 of the certificate DER.
func CredentialRef(certDER []byte) string {
	sum := sha256.Sum256(certDER)
	return hex.EncodeToString(sum[:])
}

func VerifyCertificate(certPEMBlock []byte, caCertPEMBlock []byte, keyUsages ...x509.ExtKeyUsage) error {
	pemBlock, _ := pem.Decode(certPEMBlock)
	if pemBlock == nil {
		return fmt.Errorf("error decoding PEM block")
	}
	cert, err := x509.ParseCertificate(pemBlock.Bytes)
	if err != nil {
		return fmt.Errorf("error parsing certificate: %w", err)
	}

	roots, intermediates, err := NewCertPools(caCertPEMBlock)
	if err != nil {
		return fmt.Errorf("error parsing ca certificates: %w", err)
	}

	_, err = cert.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     keyUsages,
	})
	return err
}

// NewCertPools splits the PEM bundle into self signed roots and intermediates.
func NewCertPools(pemBytes []byte) (*x509.CertPool, *x509.CertPool, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, pemBytes = pem.Decode(pemBytes)
		if block == nil {
			break
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, nil, err
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, nil, fmt.Errorf("no certificates found")
	}
	roots := x509.NewCertPool()
	intermediates := x509.NewCertPool()
	for _, cert := range certs {
		if cert.CheckSignatureFrom(cert) == nil {
			roots.AddCert(cert)
		} else {
			intermediates.AddCert(cert)
		}
	}
	return roots, intermediates, nil
}
